package server

import (
	"encoding/json"
	"sync/atomic"

	sig "live-relay/pkg/signal"
)

// Peer 是会话背后的传输连接。
// Send 只负责投递，失败时返回 false，不会阻塞也不会 panic；
// Close 先发送完已排队的消息再关闭连接。
type Peer interface {
	Send(data []byte) bool
	Close()
}

// Session 是每条连接的状态记录。Role / RoomID / ViewerID 只在 Router 的锁内修改，
// alive 由存活检测与 pong 处理并发读写。
type Session struct {
	ID       string
	Role     sig.Role
	RoomID   string
	ViewerID string
	Name     string

	peer  Peer
	alive atomic.Bool
}

func NewSession(id string, peer Peer) *Session {
	s := &Session{ID: id, peer: peer}
	s.alive.Store(true)
	return s
}

// Send 序列化并投递一条消息，投递失败直接丢弃
func (s *Session) Send(msg *sig.Message) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	return s.sendRaw(b)
}

func (s *Session) sendRaw(b []byte) bool {
	if s == nil || s.peer == nil {
		return false
	}
	return s.peer.Send(b)
}

// Close 关闭会话的连接，断线清理由读循环退出时触发
func (s *Session) Close() {
	if s.peer != nil {
		s.peer.Close()
	}
}

// MarkProbed 把存活标记置为 false 并返回之前的值
func (s *Session) MarkProbed() bool {
	return s.alive.Swap(false)
}

// Pong 收到探测回应
func (s *Session) Pong() {
	s.alive.Store(true)
}

// Alive 返回当前存活标记
func (s *Session) Alive() bool {
	return s.alive.Load()
}
