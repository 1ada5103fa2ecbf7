package server

import (
	"sync"
	"time"

	"live-relay/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client 是一条 WebSocket 连接，实现 Peer 与 liveness.Target
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	session *Session
	server  *Server
	limiter *rate.Limiter
}

func NewClient(conn *websocket.Conn, s *Server) *Client {
	c := &Client{
		conn:   conn,
		send:   make(chan []byte, s.opts.SendBuffer),
		done:   make(chan struct{}),
		server: s,
	}
	if s.opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	}
	c.session = NewSession(utils.GenConnID(), c)
	return c
}

// Send 把消息放入发送队列。连接已关闭或队列已满时丢弃并返回 false
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close 发送完队列中的消息后关闭连接
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// ID 实现 liveness.Target
func (c *Client) ID() string {
	return c.session.ID
}

func (c *Client) MarkProbed() bool {
	return c.session.MarkProbed()
}

// Ping 发送 WebSocket ping。WriteControl 可以与 writePump 并发调用
func (c *Client) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.server.opts.WriteTimeout))
}

// Terminate 立即断开连接，不再发送排队中的消息
func (c *Client) Terminate() {
	c.Close()
	c.conn.Close()
}

func (c *Client) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		c.Terminate()
	}()

	// ReadLimit 是传输层上限：超限的帧不会进入 Router，gorilla 直接以 1009 关闭连接
	c.conn.SetReadLimit(c.server.opts.ReadLimit)
	c.conn.SetPongHandler(func(string) error {
		c.session.Pong()
		return nil
	})

	for {
		_, msgBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("websocket read error", zap.String("conn", c.session.ID), zap.Error(err))
			}
			break
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.server.rateLimited.Add(1)
			c.session.Send(rateLimitedMessage)
			continue
		}
		c.server.router.Route(c.session, msgBytes)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			deadline := time.Now().Add(c.server.opts.WriteTimeout)
			c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// flush 写出关闭前已经排队的消息，例如被替换时的通知
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.server.opts.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}
