package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Cursor records which group leaves have been fully persisted, in a JSON
// sidecar next to the output file, so an interrupted grouped run can resume
// instead of restarting from an empty file.
type Cursor struct {
	path string

	mu        sync.Mutex
	completed map[string]struct{}
}

type cursorState struct {
	Completed []string  `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CursorPath derives the sidecar path from the output file.
func CursorPath(outputFile string) string {
	return outputFile + ".cursor.json"
}

// LoadCursor reads the sidecar. A missing file yields an empty cursor; when
// resume is false any stale sidecar is discarded.
func LoadCursor(path string, resume bool) (*Cursor, error) {
	c := &Cursor{
		path:      path,
		completed: make(map[string]struct{}),
	}

	if !resume {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("discard stale cursor: %w", err)
		}
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read cursor: %w", err)
	}

	var state cursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	for _, key := range state.Completed {
		c.completed[key] = struct{}{}
	}
	return c, nil
}

// Done reports whether a leaf was already persisted by an earlier run.
func (c *Cursor) Done(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.completed[key]
	return ok
}

// MarkDone records a fully persisted leaf. The sidecar is written atomically
// so a crash mid-update leaves the previous state intact.
func (c *Cursor) MarkDone(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed[key] = struct{}{}
	state := cursorState{
		Completed: make([]string, 0, len(c.completed)),
		UpdatedAt: time.Now(),
	}
	for k := range c.completed {
		state.Completed = append(state.Completed, k)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cursor: %w", err)
	}
	return nil
}

// Len returns the number of completed leaves.
func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completed)
}
