// internal/pkg/outbox/memory.go
package outbox

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 是进程内的 Store 实现，用于单进程部署形态和测试
type MemoryStore struct {
	mu      sync.Mutex
	nextID  uint64
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, aggregateID, eventType string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.records = append(s.records, Record{
		ID:          s.nextID,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     append([]byte(nil), payload...),
		Status:      StatusNew,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (s *MemoryStore) FetchNew(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.records {
		if r.Status != StatusNew {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			now := time.Now()
			s.records[i].Status = StatusSent
			s.records[i].SentAt = &now
			break
		}
	}
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uint64, sendErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Retries++
			s.records[i].LastError = sendErr.Error()
			break
		}
	}
	return nil
}

// All 返回全部记录的快照，测试用
func (s *MemoryStore) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}
