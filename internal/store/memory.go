package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/infrastructure-risk/internal/monitor"
)

var (
	// ErrNotFound is returned when no assessments are available for a city.
	ErrNotFound = errors.New("no assessments for city")
)

// ResultHistory holds a time-ordered list of search results for a city.
type ResultHistory struct {
	Results []monitor.Result
}

// MemoryStore is a concurrency-safe in-memory store of search results.
type MemoryStore struct {
	mu sync.RWMutex

	// key: monitor.CityKey, value: history
	data map[string]*ResultHistory

	// retention configuration
	maxHistory int           // max number of results per city
	maxAge     time.Duration // optional max age for results

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ResultHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends a result for its city and enforces retention.
func (s *MemoryStore) Save(result monitor.Result) {
	key := monitor.CityKey(result.City)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ResultHistory{}
		s.data[key] = history
	}

	history.Results = append(history.Results, result)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Results) > s.maxHistory {
		over := len(history.Results) - s.maxHistory
		history.Results = history.Results[over:]
	}

	// Enforce retention by age; the newest result always survives.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Results)-1; i++ {
			if !history.Results[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		history.Results = history.Results[i:]
	}
}

// Latest returns the most recent result for a city.
func (s *MemoryStore) Latest(city string) (monitor.Result, error) {
	key := monitor.CityKey(city)

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Results) == 0 {
		return monitor.Result{}, ErrNotFound
	}
	return history.Results[len(history.Results)-1], nil
}

// Range returns all results for a city generated between from and to (inclusive).
func (s *MemoryStore) Range(city string, from, to time.Time) ([]monitor.Result, error) {
	key := monitor.CityKey(city)

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Results) == 0 {
		return nil, ErrNotFound
	}

	var result []monitor.Result
	for _, r := range history.Results {
		if !r.GeneratedAt.Before(from) && !r.GeneratedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
