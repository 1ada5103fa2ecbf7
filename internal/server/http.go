package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

const healthText = "WebRTC signaling server is running"

// Handler 返回挂载了全部路由的 http.Handler。
// wsPath 与根路径都接受 WebSocket 升级，根路径的普通请求返回健康检查文本。
func (s *Server) Handler(wsPath string) http.Handler {
	if wsPath == "" {
		wsPath = "/ws"
	}
	mux := http.NewServeMux()
	if wsPath != "/" {
		mux.HandleFunc(wsPath, s.ServeWS)
	}
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/stats", s.stats)
	mux.HandleFunc("/metrics", s.metrics)
	mux.HandleFunc("/ice-servers", s.iceServers)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			s.ServeWS(w, r)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.healthz(w, r)
	})
	return mux
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(healthText))
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Ledger().Snapshot())
}

func (s *Server) metrics(w http.ResponseWriter, _ *http.Request) {
	counts := s.router.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"active_rooms":        counts.Rooms,
		"publishers":          counts.Publishers,
		"controllers":         counts.Controllers,
		"viewers":             counts.Viewers,
		"connections":         s.ConnectionCount(),
		"dropped_frames":      s.router.Dropped(),
		"rate_limited_frames": s.rateLimited.Load(),
		"evicted_connections": s.supervisor.Evicted(),
	})
}

func (s *Server) iceServers(w http.ResponseWriter, _ *http.Request) {
	servers := s.opts.ICEServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"iceServers": servers})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// StartHTTPServer 在当前进程内启动 HTTP 服务器。
// addr 形如 ":10000" 或 "127.0.0.1:0"（端口为 0 时由系统自动分配）。
// 返回实际监听地址、用于优雅关闭的 stop 函数，以及错误信息。
func StartHTTPServer(addr string, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	actualAddr := ln.Addr().String()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("http server shutdown error", zap.Error(err))
		}
	}

	return actualAddr, stop, nil
}
