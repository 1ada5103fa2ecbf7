package signal

import "encoding/json"

// MessageType 是客户端 / 服务器之间信令消息中的 type 字段取值
type MessageType string

// 客户端 → 服务器
const (
	MsgTypeJoin      MessageType = "join"
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
	MsgTypeControl   MessageType = "control"
	MsgTypeLeave     MessageType = "leave"
)

// 服务器 → 客户端（offer / answer / candidate 复用上面的取值）
const (
	MsgTypeJoined         MessageType = "joined"
	MsgTypeError          MessageType = "error"
	MsgTypeInfo           MessageType = "info"
	MsgTypeViewerJoined   MessageType = "viewer-joined"
	MsgTypeViewerLeft     MessageType = "viewer-left"
	MsgTypePublisherLeft  MessageType = "publisher-left"
	MsgTypePublisherReady MessageType = "publisher-ready"
	MsgTypeStreamStarted  MessageType = "stream-started"
	MsgTypeStreamStopped  MessageType = "stream-stopped"
	MsgTypePlayAd         MessageType = "play-ad"
	MsgTypeResumeStream   MessageType = "resume-stream"
	MsgTypeMuteAudio      MessageType = "mute-audio"
	MsgTypeSubtitle       MessageType = "subtitle"
	MsgTypeClearSubtitle  MessageType = "clear-subtitle"
	MsgTypeAdStarted      MessageType = "ad-started"
	MsgTypeAdStopped      MessageType = "ad-stopped"
)

// Role 表示连接在房间中的角色
type Role string

const (
	RoleNone       Role = ""
	RolePublisher  Role = "publisher"
	RoleViewer     Role = "viewer"
	RoleController Role = "controller"
)

// Valid 判断是否为可加入的三种角色之一
func (r Role) Valid() bool {
	switch r {
	case RolePublisher, RoleViewer, RoleController:
		return true
	}
	return false
}

// Action 是 control 消息携带的房间级控制动作
type Action string

const (
	ActionStartStream   Action = "start-stream"
	ActionStopStream    Action = "stop-stream"
	ActionMuteAudio     Action = "mute-audio"
	ActionPlayAd        Action = "play-ad"
	ActionResumeStream  Action = "resume-stream"
	ActionSendSubtitle  Action = "send-subtitle"
	ActionClearSubtitle Action = "clear-subtitle"
)

// Valid 判断是否为已知的控制动作
func (a Action) Valid() bool {
	switch a {
	case ActionStartStream, ActionStopStream, ActionMuteAudio, ActionPlayAd,
		ActionResumeStream, ActionSendSubtitle, ActionClearSubtitle:
		return true
	}
	return false
}

// error / info 消息中的 reason 取值
const (
	ReasonInvalidMessage     = "invalid message"
	ReasonUnknownType        = "unknown message type"
	ReasonMissingRoom        = "missing room"
	ReasonUnknownRoom        = "unknown room"
	ReasonInvalidRole        = "invalid role"
	ReasonAlreadyJoined      = "already joined"
	ReasonViewerNotFound     = "viewer not found"
	ReasonPublisherNotFound  = "publisher not found"
	ReasonNotRegistered      = "not registered"
	ReasonNoPublisher        = "no publisher"
	ReasonUnknownAction      = "unknown action"
	ReasonRateLimited        = "rate limited"
	ReasonPublisherReplaced  = "new-publisher-replaced"
	ReasonControllerReplaced = "new-controller-replaced"
)

// Message 是服务器下发的消息结构，所有下行类型共用，空字段不序列化
type Message struct {
	Type      MessageType     `json:"type"`
	Role      Role            `json:"role,omitempty"`
	Room      string          `json:"room,omitempty"`
	ViewerID  string          `json:"viewerId,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	AdID      string          `json:"adId,omitempty"`
	AdURL     string          `json:"adUrl,omitempty"`
	MuteAudio *bool           `json:"muteAudio,omitempty"`
	Text      *string         `json:"text,omitempty"`
}

// Error 构造 error 消息
func Error(reason string) *Message {
	return &Message{Type: MsgTypeError, Reason: reason}
}

// Info 构造 info 消息
func Info(reason string) *Message {
	return &Message{Type: MsgTypeInfo, Reason: reason}
}

// Notice 构造不带负载的通知，例如 stream-started、publisher-left
func Notice(t MessageType) *Message {
	return &Message{Type: t}
}
