package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	sig "live-relay/pkg/signal"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// 默认信令地址
const DefaultSignalURL = "ws://127.0.0.1:10000/ws"

var (
	ErrClosed  = errors.New("signaling connection closed")
	ErrNoRoom  = errors.New("room is required")
	ErrBadRole = errors.New("invalid role")
)

// message 是客户端发往信令服务器的 JSON 结构
type message struct {
	Type      sig.MessageType `json:"type"`
	Role      sig.Role        `json:"role,omitempty"`
	Room      string          `json:"room,omitempty"`
	Name      string          `json:"name,omitempty"`
	ViewerID  string          `json:"viewerId,omitempty"`
	Offer     any             `json:"offer,omitempty"`
	Answer    any             `json:"answer,omitempty"`
	Candidate any             `json:"candidate,omitempty"`
	Action    sig.Action      `json:"action,omitempty"`
	AdID      string          `json:"adId,omitempty"`
	AdURL     string          `json:"adUrl,omitempty"`
	MuteAudio *bool           `json:"muteAudio,omitempty"`
	Text      string          `json:"text,omitempty"`
}

// ControlParams 是 control 动作的可选参数
type ControlParams struct {
	AdID      string
	AdURL     string
	MuteAudio bool
	Text      string
}

// Conn 是一条到信令服务器的连接。写操作串行化，下行消息通过 Messages 读取
type Conn struct {
	ws     *websocket.Conn
	wmu    sync.Mutex
	msgs   chan sig.Message
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Dial 连接信令服务器，url 为空时使用 DefaultSignalURL
func Dial(ctx context.Context, url string) (*Conn, error) {
	if url == "" {
		url = DefaultSignalURL
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:     ws,
		msgs:   make(chan sig.Message, 64),
		ctx:    cctx,
		cancel: cancel,
	}
	go c.readLoop()
	return c, nil
}

// Messages 返回下行消息通道，连接断开后通道被关闭
func (c *Conn) Messages() <-chan sig.Message {
	return c.msgs
}

// Next 读取下一条下行消息
func (c *Conn) Next(ctx context.Context) (sig.Message, error) {
	select {
	case <-ctx.Done():
		return sig.Message{}, ctx.Err()
	case msg, ok := <-c.msgs:
		if !ok {
			return sig.Message{}, ErrClosed
		}
		return msg, nil
	}
}

// WaitFor 丢弃其他消息，直到收到指定类型的消息
func (c *Conn) WaitFor(ctx context.Context, t sig.MessageType) (sig.Message, error) {
	for {
		msg, err := c.Next(ctx)
		if err != nil {
			return msg, err
		}
		if msg.Type == t {
			return msg, nil
		}
	}
}

// Join 以指定角色加入房间
func (c *Conn) Join(role sig.Role, room, name string) error {
	if room == "" {
		return ErrNoRoom
	}
	if !role.Valid() {
		return ErrBadRole
	}
	return c.write(message{Type: sig.MsgTypeJoin, Role: role, Room: room, Name: name})
}

// SendOffer 推流端把 offer 发给指定观众
func (c *Conn) SendOffer(room, viewerID string, offer webrtc.SessionDescription) error {
	return c.write(message{Type: sig.MsgTypeOffer, Room: room, ViewerID: viewerID, Offer: offer})
}

// SendAnswer 观众把 answer 发给推流端
func (c *Conn) SendAnswer(room, viewerID string, answer webrtc.SessionDescription) error {
	return c.write(message{Type: sig.MsgTypeAnswer, Room: room, ViewerID: viewerID, Answer: answer})
}

// SendCandidate 发送 ICE candidate。推流端需要指定 viewerID，观众端由服务器补全
func (c *Conn) SendCandidate(room, viewerID string, cand webrtc.ICECandidateInit) error {
	return c.write(message{Type: sig.MsgTypeCandidate, Room: room, ViewerID: viewerID, Candidate: cand})
}

// Control 发送控制动作，room 为空时使用连接所在房间
func (c *Conn) Control(room string, action sig.Action, p ControlParams) error {
	msg := message{
		Type:   sig.MsgTypeControl,
		Room:   room,
		Action: action,
		AdID:   p.AdID,
		AdURL:  p.AdURL,
		Text:   p.Text,
	}
	if action == sig.ActionPlayAd {
		mute := p.MuteAudio
		msg.MuteAudio = &mute
	}
	return c.write(msg)
}

// Leave 离开当前房间，连接保持打开
func (c *Conn) Leave() error {
	return c.write(message{Type: sig.MsgTypeLeave})
}

// Close 发送关闭帧并断开连接
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		c.wmu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) write(msg message) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *Conn) readLoop() {
	defer close(c.msgs)
	defer c.cancel()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg sig.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		select {
		case c.msgs <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// SessionDescription 解析 offer / answer 消息中的 SDP
func SessionDescription(msg sig.Message) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	raw := msg.Offer
	if msg.Type == sig.MsgTypeAnswer {
		raw = msg.Answer
	}
	if len(raw) == 0 {
		return sd, errors.New("message carries no session description")
	}
	err := json.Unmarshal(raw, &sd)
	return sd, err
}

// Candidate 解析 candidate 消息中的 ICE candidate
func Candidate(msg sig.Message) (webrtc.ICECandidateInit, error) {
	var cand webrtc.ICECandidateInit
	if len(msg.Candidate) == 0 {
		return cand, errors.New("message carries no candidate")
	}
	err := json.Unmarshal(msg.Candidate, &cand)
	return cand, err
}
