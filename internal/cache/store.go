package cache

import (
	"context"
	"sync"
	"time"
)

// Store 管理渲染结果的内存缓存，所有挂载点共享一份实例。
type Store interface {
	// Get 返回未过期的记录；命中过期记录时顺带删除并视为未命中。
	Get(key string) (Record, bool)

	// Put 整体替换 key 对应的记录，不做部分更新。
	Put(key string, rec Record)

	// Remove 删除指定记录，不存在时静默返回。
	Remove(key string)

	// Sweep 清除所有已过期记录并返回清除数量。
	Sweep() int

	// Len 返回当前记录数（包含尚未被清除的过期记录）。
	Len() int
}

// Record 表示一次目录渲染的完整结果。
type Record struct {
	Payload   []byte
	IsJSON    bool
	ExpiresAt time.Time
}

// Option 调整 Store 的可选行为。
type Option func(*memoryStore)

// WithClock 注入时钟，测试中用于模拟过期。
func WithClock(now func() time.Time) Option {
	return func(s *memoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore 构建内存缓存，默认使用 time.Now 作为时钟。
func NewStore(opts ...Option) Store {
	s := &memoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func (s *memoryStore) Get(key string) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	if s.now().Before(rec.ExpiresAt) {
		return rec, true
	}

	s.mu.Lock()
	// 仅当记录未被并发替换时才删除
	if cur, ok := s.records[key]; ok && cur.ExpiresAt.Equal(rec.ExpiresAt) {
		delete(s.records, key)
	}
	s.mu.Unlock()
	return Record{}, false
}

func (s *memoryStore) Put(key string, rec Record) {
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
}

func (s *memoryStore) Remove(key string) {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

func (s *memoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RunJanitor 按 interval 周期调用 Sweep，直到 ctx 取消。interval<=0 时立即返回。
// onSweep 可为空，用于记录每轮清除数量。
func RunJanitor(ctx context.Context, store Store, interval time.Duration, onSweep func(removed int)) {
	if store == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := store.Sweep()
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}
