package stats

import (
	"sync"
	"time"
)

const (
	DefaultHistoryCap  = 1000
	DefaultHistoryKeep = 500

	anonymousName = "anonymous"
)

// HistoryEntry 记录一次观众进入 / 离开
type HistoryEntry struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Room      string     `json:"room"`
	JoinTime  time.Time  `json:"joinTime"`
	LeaveTime *time.Time `json:"leaveTime"`
}

// Snapshot 是统计数据的只读副本，可直接序列化为 /stats 的响应
type Snapshot struct {
	CurrentViewers int            `json:"currentViewers"`
	TotalViewers   int            `json:"totalViewers"`
	ViewerHistory  []HistoryEntry `json:"viewerHistory"`
}

// Ledger 统计观众数量与有界的进出历史。
// 写入只来自 join / leave 处理，读取通过 Snapshot。
type Ledger struct {
	mu      sync.Mutex
	total   int
	current int
	history []HistoryEntry
	limit   int
	keep    int
	now     func() time.Time
}

type Option func(*Ledger)

// WithLimits 设置历史上限与裁剪后保留的条数
func WithLimits(limit, keep int) Option {
	return func(l *Ledger) {
		if limit > 0 {
			l.limit = limit
		}
		if keep > 0 && keep <= l.limit {
			l.keep = keep
		}
	}
}

// WithClock 替换时间来源，测试用
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		limit: DefaultHistoryCap,
		keep:  DefaultHistoryKeep,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.keep > l.limit {
		l.keep = l.limit
	}
	return l
}

// Join 记录观众加入，两个计数器同时加一
func (l *Ledger) Join(viewerID, name, room string) {
	if name == "" {
		name = anonymousName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	l.current++
	l.history = append(l.history, HistoryEntry{
		ID:       viewerID,
		Name:     name,
		Room:     room,
		JoinTime: l.now().UTC(),
	})
	if len(l.history) > l.limit {
		trimmed := make([]HistoryEntry, l.keep)
		copy(trimmed, l.history[len(l.history)-l.keep:])
		l.history = trimmed
	}
}

// Leave 记录观众离开。条目可能已被裁剪掉，此时只更新计数
func (l *Ledger) Leave(viewerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current > 0 {
		l.current--
	}
	for i := len(l.history) - 1; i >= 0; i-- {
		e := &l.history[i]
		if e.ID == viewerID && e.LeaveTime == nil {
			t := l.now().UTC()
			e.LeaveTime = &t
			return
		}
	}
}

// Snapshot 返回当前统计的副本
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := make([]HistoryEntry, len(l.history))
	for i, e := range l.history {
		history[i] = e
		if e.LeaveTime != nil {
			t := *e.LeaveTime
			history[i].LeaveTime = &t
		}
	}
	return Snapshot{
		CurrentViewers: l.current,
		TotalViewers:   l.total,
		ViewerHistory:  history,
	}
}
