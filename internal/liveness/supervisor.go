package liveness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = 30 * time.Second

// Target 是被监督的连接
type Target interface {
	ID() string
	// MarkProbed 把存活标记置为 false，并返回之前的值
	MarkProbed() bool
	// Ping 发送一次探测，收到 pong 后由连接自己把标记恢复为 true
	Ping() error
	// Terminate 强制断开连接，后续的清理走正常的断线流程
	Terminate()
}

// Supervisor 周期性探测所有连接，清理一个周期内没有回应的连接
type Supervisor struct {
	mu       sync.Mutex
	targets  map[string]Target
	interval time.Duration
	logger   *zap.Logger

	evicted int64
}

func New(interval time.Duration, logger *zap.Logger) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		targets:  make(map[string]Target),
		interval: interval,
		logger:   logger,
	}
}

func (s *Supervisor) Track(t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[t.ID()] = t
}

func (s *Supervisor) Untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, id)
}

// Len 返回当前被监督的连接数
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// Evicted 返回累计被清理的连接数
func (s *Supervisor) Evicted() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// Sweep 执行一轮探测：上一轮没有回应的连接被断开，其余连接重新探测
func (s *Supervisor) Sweep() {
	s.mu.Lock()
	targets := make([]Target, 0, len(s.targets))
	for _, t := range s.targets {
		targets = append(targets, t)
	}
	s.mu.Unlock()

	for _, t := range targets {
		if !t.MarkProbed() {
			s.logger.Info("evicting unresponsive connection", zap.String("conn", t.ID()))
			s.mu.Lock()
			delete(s.targets, t.ID())
			s.evicted++
			s.mu.Unlock()
			t.Terminate()
			continue
		}
		if err := t.Ping(); err != nil {
			s.logger.Debug("ping failed", zap.String("conn", t.ID()), zap.Error(err))
		}
	}
}

// Run 按固定周期执行 Sweep，直到 ctx 结束
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
