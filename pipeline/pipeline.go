// Package pipeline persists merged records in batches, in program order.
package pipeline

import (
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Quintui/car-details-web-scraper/models"
	"github.com/Quintui/car-details-web-scraper/parser"
)

// Grouped runs revisit the same catalog under many filters, so the same part
// shows up under several year ranges. The dedup cache is bounded rather than
// unbounded because long runs can see hundreds of thousands of keys.
const dedupCacheSize = 65536

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.MergedProduct) error
	Close() error
	Validate() error
}

// Sink validates, deduplicates, and persists batches of merged records. It is
// synchronous: Append for batch N returns only after the batch is durable, so
// a crash leaves the output containing whole batches only.
type Sink struct {
	writer OutputWriter
	budget int // 0 = unlimited

	mu      sync.Mutex
	seen    *lru.Cache[string, struct{}]
	written int
	dropped map[string]int
}

// NewSink builds a sink bounded by the global item budget.
func NewSink(writer OutputWriter, budget int) (*Sink, error) {
	if budget < 0 {
		return nil, fmt.Errorf("budget cannot be negative")
	}
	seen, err := lru.New[string, struct{}](dedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &Sink{
		writer:  writer,
		budget:  budget,
		seen:    seen,
		dropped: make(map[string]int),
	}, nil
}

// Remaining reports how many more records the budget allows.
func (s *Sink) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Sink) remainingLocked() int {
	if s.budget == 0 {
		return math.MaxInt
	}
	if s.written >= s.budget {
		return 0
	}
	return s.budget - s.written
}

// Append persists one logical batch. Invalid and duplicate records are
// dropped and counted; the batch is truncated exactly to the remaining budget
// before writing. An empty batch is a no-op that never touches the output.
func (s *Sink) Append(records []models.MergedProduct) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.remainingLocked()
	prepared := make([]*models.MergedProduct, 0, len(records))
	for i := range records {
		if len(prepared) >= remaining {
			break
		}
		record := &records[i]
		if err := parser.ValidateMerged(record); err != nil {
			s.dropped["invalid_record"]++
			continue
		}
		key := parser.ItemKey(&record.ProductSummary)
		if found, _ := s.seen.ContainsOrAdd(key, struct{}{}); found {
			s.dropped["duplicate_item"]++
			continue
		}
		prepared = append(prepared, record)
	}

	if len(prepared) == 0 {
		return 0, nil
	}
	if err := s.writer.Write(prepared); err != nil {
		return 0, fmt.Errorf("write batch: %w", err)
	}
	s.written += len(prepared)
	return len(prepared), nil
}

// Written returns the number of records persisted so far.
func (s *Sink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Dropped returns a snapshot of drop counts by reason.
func (s *Sink) Dropped() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.dropped))
	for k, v := range s.dropped {
		out[k] = v
	}
	return out
}
