package signal

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed 表示消息不是合法的 JSON 或缺少 type 字段
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownType 表示 type 不属于任何上行消息类型
	ErrUnknownType = errors.New("unknown message type")
)

// Request 是解码后的上行消息。实现类型是封闭的：
// JoinRequest、OfferRequest、AnswerRequest、CandidateRequest、ControlRequest、LeaveRequest
type Request interface {
	Kind() MessageType
	request()
}

type JoinRequest struct {
	Role Role
	Room string
	Name string
}

type OfferRequest struct {
	Room     string
	ViewerID string
	Offer    json.RawMessage
}

type AnswerRequest struct {
	Room     string
	ViewerID string
	Answer   json.RawMessage
}

type CandidateRequest struct {
	Room      string
	ViewerID  string
	Candidate json.RawMessage
}

// ControlRequest 携带一个动作以及所有动作参数的并集，muteAudio 缺省为 false
type ControlRequest struct {
	Room      string
	Action    Action
	AdID      string
	AdURL     string
	MuteAudio bool
	Text      string
}

type LeaveRequest struct{}

func (*JoinRequest) Kind() MessageType      { return MsgTypeJoin }
func (*OfferRequest) Kind() MessageType     { return MsgTypeOffer }
func (*AnswerRequest) Kind() MessageType    { return MsgTypeAnswer }
func (*CandidateRequest) Kind() MessageType { return MsgTypeCandidate }
func (*ControlRequest) Kind() MessageType   { return MsgTypeControl }
func (*LeaveRequest) Kind() MessageType     { return MsgTypeLeave }

func (*JoinRequest) request()      {}
func (*OfferRequest) request()     {}
func (*AnswerRequest) request()    {}
func (*CandidateRequest) request() {}
func (*ControlRequest) request()   {}
func (*LeaveRequest) request()     {}

// envelope 包含所有上行字段
type envelope struct {
	Type      MessageType     `json:"type"`
	Role      Role            `json:"role"`
	Room      string          `json:"room"`
	Name      string          `json:"name"`
	ViewerID  string          `json:"viewerId"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
	Action    Action          `json:"action"`
	AdID      string          `json:"adId"`
	AdURL     string          `json:"adUrl"`
	MuteAudio *bool           `json:"muteAudio"`
	Text      string          `json:"text"`
}

// Decode 把一帧文本解析为具体的 Request。
// room / role 的校验依赖房间状态，交给 Router 处理
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case MsgTypeJoin:
		return &JoinRequest{Role: env.Role, Room: env.Room, Name: env.Name}, nil
	case MsgTypeOffer:
		return &OfferRequest{Room: env.Room, ViewerID: env.ViewerID, Offer: env.Offer}, nil
	case MsgTypeAnswer:
		return &AnswerRequest{Room: env.Room, ViewerID: env.ViewerID, Answer: env.Answer}, nil
	case MsgTypeCandidate:
		return &CandidateRequest{Room: env.Room, ViewerID: env.ViewerID, Candidate: env.Candidate}, nil
	case MsgTypeControl:
		req := &ControlRequest{
			Room:   env.Room,
			Action: env.Action,
			AdID:   env.AdID,
			AdURL:  env.AdURL,
			Text:   env.Text,
		}
		if env.MuteAudio != nil {
			req.MuteAudio = *env.MuteAudio
		}
		return req, nil
	case MsgTypeLeave:
		return &LeaveRequest{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
