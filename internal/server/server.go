package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"live-relay/internal/liveness"
	sig "live-relay/pkg/signal"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

var rateLimitedMessage = sig.Error(sig.ReasonRateLimited)

// Options 是传输层参数
type Options struct {
	WriteTimeout time.Duration
	ReadLimit    int64
	SendBuffer   int
	// RateLimit 为每条连接每秒允许的上行消息数，0 表示不限制
	RateLimit  float64
	RateBurst  int
	ICEServers []webrtc.ICEServer
}

func (o *Options) normalize() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 512 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
}

// Server 信令服务器：接受 WebSocket 连接，把消息交给 Router，并由 Supervisor 做存活检测
type Server struct {
	Clients    map[*Client]bool
	router     *Router
	supervisor *liveness.Supervisor
	opts       Options
	logger     *zap.Logger
	mu         sync.RWMutex
	upgrader   websocket.Upgrader

	rateLimited atomic.Int64
}

func NewServer(router *Router, supervisor *liveness.Supervisor, opts Options, logger *zap.Logger) *Server {
	opts.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	if supervisor == nil {
		supervisor = liveness.New(liveness.DefaultInterval, logger)
	}
	return &Server{
		Clients:    make(map[*Client]bool),
		router:     router,
		supervisor: supervisor,
		opts:       opts,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run 启动存活检测，直到 ctx 结束
func (s *Server) Run(ctx context.Context) {
	s.supervisor.Run(ctx)
}

// ServeWS WebSocket 入口
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, s)

	s.registerClient(client)

	go client.writePump()
	go client.readPump()
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	s.Clients[c] = true
	s.mu.Unlock()
	s.supervisor.Track(c)
	s.logger.Debug("client connected", zap.String("conn", c.session.ID))
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	delete(s.Clients, c)
	s.mu.Unlock()
	s.supervisor.Untrack(c.session.ID)
	s.router.Disconnect(c.session)
	s.logger.Debug("client disconnected", zap.String("conn", c.session.ID))
}

// ConnectionCount 返回当前连接数
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Clients)
}

// CloseAll 关闭所有连接，用于进程退出
func (s *Server) CloseAll() {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.Clients))
	for c := range s.Clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
