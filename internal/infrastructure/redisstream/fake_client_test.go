package redisstream

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeStream is an in-memory StreamClient holding a single result stream plus plain keys.
type fakeStream struct {
	mu      sync.Mutex
	records []redis.XMessage
	deleted map[string]bool
	keys    map[string]string
	reads   []string
	added   []*redis.XAddArgs

	pingErr error
	xaddErr error
	readErr func(call int) error
	setErr  func() error
}

func newFakeStream(records ...redis.XMessage) *fakeStream {
	return &fakeStream{
		records: records,
		deleted: map[string]bool{},
		keys:    map[string]string{},
	}
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.xaddErr != nil {
		return redis.NewStringResult("", f.xaddErr)
	}
	f.added = append(f.added, a)
	return redis.NewStringResult("1700000000000-0", nil)
}

func (f *fakeStream) XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	lastID := a.Streams[1]
	f.reads = append(f.reads, lastID)
	call := len(f.reads)
	if f.readErr != nil {
		if err := f.readErr(call); err != nil {
			f.mu.Unlock()
			return redis.NewXStreamSliceCmdResult(nil, err)
		}
	}

	start := 0
	switch lastID {
	case "0", emptyStreamID:
	case "$":
		start = len(f.records)
	default:
		start = len(f.records)
		for i, rec := range f.records {
			if rec.ID == lastID {
				start = i + 1
				break
			}
		}
	}

	var out []redis.XMessage
	for i := start; i < len(f.records) && int64(len(out)) < a.Count; i++ {
		if !f.deleted[f.records[i].ID] {
			out = append(out, f.records[i])
		}
	}
	f.mu.Unlock()

	if len(out) == 0 {
		select {
		case <-ctx.Done():
			return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
		case <-time.After(a.Block):
			return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
		}
	}
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: out}}, nil)
}

func (f *fakeStream) XDel(_ context.Context, _ string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.deleted[id] = true
	}
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStream) XLen(_ context.Context, _ string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.records)-len(f.deleted)), nil)
}

func (f *fakeStream) XRevRangeN(_ context.Context, _, _, _ string, count int64) *redis.XMessageSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []redis.XMessage
	for i := len(f.records) - 1; i >= 0 && int64(len(out)) < count; i-- {
		if !f.deleted[f.records[i].ID] {
			out = append(out, f.records[i])
		}
	}
	return redis.NewXMessageSliceCmdResult(out, nil)
}

func (f *fakeStream) appendRecord(msg redis.XMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, msg)
}

func (f *fakeStream) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.keys[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStream) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		if err := f.setErr(); err != nil {
			return redis.NewStatusResult("", err)
		}
	}
	f.keys[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStream) Ping(_ context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeStream) key(k string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[k]
}

func (f *fakeStream) isDeleted(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[id]
}

func (f *fakeStream) readOffsets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reads...)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	busy     bool
	released int
}

func (l *fakeLocker) TryAcquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) Extend(context.Context) error { return nil }

func (l *fakeLocker) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}
