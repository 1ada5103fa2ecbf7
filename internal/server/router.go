package server

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"live-relay/internal/stats"
	sig "live-relay/pkg/signal"
	"live-relay/pkg/utils"

	"go.uber.org/zap"
)

// Router 解析上行消息并分发给各角色的处理函数。
// 所有房间状态的读写都在 mu 内完成，同一时刻只有一个处理函数在操作房间。
type Router struct {
	mu       sync.Mutex
	registry *Registry
	ledger   *stats.Ledger
	logger   *zap.Logger

	newViewerID func() string
	dropped     atomic.Int64
}

func NewRouter(registry *Registry, ledger *stats.Ledger, logger *zap.Logger) *Router {
	if registry == nil {
		registry = NewRegistry()
	}
	if ledger == nil {
		ledger = stats.NewLedger()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry:    registry,
		ledger:      ledger,
		logger:      logger,
		newViewerID: utils.GenViewerID,
	}
}

// Ledger 返回观众统计
func (r *Router) Ledger() *stats.Ledger {
	return r.ledger
}

// Counts 返回房间表汇总
func (r *Router) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Counts()
}

// Dropped 返回累计投递失败的消息数
func (r *Router) Dropped() int64 {
	return r.dropped.Load()
}

// Route 处理一帧原始消息
func (r *Router) Route(s *Session, data []byte) {
	req, err := sig.Decode(data)
	if err != nil {
		r.logger.Debug("rejecting frame", zap.String("conn", s.ID), zap.Error(err))
		if errors.Is(err, sig.ErrUnknownType) {
			r.reply(s, sig.Error(sig.ReasonUnknownType))
		} else {
			r.reply(s, sig.Error(sig.ReasonInvalidMessage))
		}
		return
	}
	r.Dispatch(s, req)
}

// Dispatch 根据消息类型分发
func (r *Router) Dispatch(s *Session, req sig.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch req := req.(type) {
	case *sig.JoinRequest:
		r.handleJoin(s, req)
	case *sig.OfferRequest:
		r.handleOffer(s, req)
	case *sig.AnswerRequest:
		r.handleAnswer(s, req)
	case *sig.CandidateRequest:
		r.handleCandidate(s, req)
	case *sig.ControlRequest:
		r.handleControl(s, req)
	case *sig.LeaveRequest:
		r.teardown(s, "leave")
	}
}

// Disconnect 在连接关闭（包括存活检测清理）时调用，与 leave 走同一套清理逻辑
func (r *Router) Disconnect(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardown(s, "disconnect")
}

// -------------------- join --------------------

func (r *Router) handleJoin(s *Session, req *sig.JoinRequest) {
	if req.Room == "" {
		r.reply(s, sig.Error(sig.ReasonMissingRoom))
		return
	}
	if !req.Role.Valid() {
		r.reply(s, sig.Error(sig.ReasonInvalidRole))
		return
	}
	if s.Role != sig.RoleNone {
		r.reply(s, sig.Error(sig.ReasonAlreadyJoined))
		return
	}

	room := r.registry.GetOrCreate(req.Room)
	s.Role = req.Role
	s.RoomID = room.ID
	s.Name = req.Name

	switch req.Role {
	case sig.RolePublisher:
		r.joinPublisher(s, room)
	case sig.RoleViewer:
		r.joinViewer(s, room)
	case sig.RoleController:
		r.joinController(s, room)
	}
}

func (r *Router) joinPublisher(s *Session, room *Room) {
	if old := room.Publisher; old != nil && old != s {
		r.evict(old, room, sig.ReasonPublisherReplaced)
	}
	room.Publisher = s
	r.logger.Info("publisher joined", zap.String("room", room.ID), zap.String("conn", s.ID))

	r.reply(s, &sig.Message{Type: sig.MsgTypeJoined, Role: sig.RolePublisher, Room: room.ID})

	// 新的推流端需要为已在房间里的观众创建 offer
	for viewerID := range room.Viewers {
		r.reply(s, &sig.Message{Type: sig.MsgTypeViewerJoined, ViewerID: viewerID})
	}

	if room.Controller != nil {
		r.reply(room.Controller, sig.Notice(sig.MsgTypePublisherReady))
		if room.StreamActive {
			r.reply(room.Controller, sig.Notice(sig.MsgTypeStreamStarted))
		}
	}
}

func (r *Router) joinViewer(s *Session, room *Room) {
	viewerID := r.newViewerID()
	for {
		if _, taken := room.Viewers[viewerID]; !taken {
			break
		}
		viewerID = r.newViewerID()
	}
	s.ViewerID = viewerID
	room.AddViewer(viewerID, s)
	r.ledger.Join(viewerID, s.Name, room.ID)
	r.logger.Info("viewer joined",
		zap.String("room", room.ID),
		zap.String("conn", s.ID),
		zap.String("viewer", viewerID),
		zap.Int("viewers", len(room.Viewers)),
	)

	r.reply(s, &sig.Message{Type: sig.MsgTypeJoined, Role: sig.RoleViewer, Room: room.ID, ViewerID: viewerID})
	if room.StreamActive {
		r.reply(s, sig.Notice(sig.MsgTypeStreamStarted))
	}
	if ad := room.CurrentAd; ad != nil {
		r.reply(s, playAdMessage(ad))
	}
	if room.Publisher != nil {
		r.reply(room.Publisher, &sig.Message{Type: sig.MsgTypeViewerJoined, ViewerID: viewerID})
	}
}

func (r *Router) joinController(s *Session, room *Room) {
	if old := room.Controller; old != nil && old != s {
		r.evict(old, room, sig.ReasonControllerReplaced)
	}
	room.Controller = s
	r.logger.Info("controller joined", zap.String("room", room.ID), zap.String("conn", s.ID))

	r.reply(s, &sig.Message{Type: sig.MsgTypeJoined, Role: sig.RoleController, Room: room.ID})
	if room.Publisher != nil {
		r.reply(s, sig.Notice(sig.MsgTypePublisherReady))
		if room.StreamActive {
			r.reply(s, sig.Notice(sig.MsgTypeStreamStarted))
		}
	}
}

// evict 通知被替换的推流端 / 控制端并关闭其连接。
// 先解除它与房间的绑定，之后它的断线清理不会再影响房间。
func (r *Router) evict(old *Session, room *Room, reason string) {
	r.logger.Info("replacing session",
		zap.String("room", room.ID),
		zap.String("conn", old.ID),
		zap.String("role", string(old.Role)),
	)
	r.reply(old, sig.Info(reason))
	old.RoomID = ""
	old.Close()
}

// -------------------- 信令转发 --------------------

// resolveRoom 优先使用消息中的 room，否则使用会话所在房间
func (r *Router) resolveRoom(s *Session, explicit string) (*Room, bool) {
	id := explicit
	if id == "" {
		id = s.RoomID
	}
	if id == "" {
		r.reply(s, sig.Error(sig.ReasonMissingRoom))
		return nil, false
	}
	room, ok := r.registry.Get(id)
	if !ok {
		r.reply(s, sig.Error(sig.ReasonUnknownRoom))
		return nil, false
	}
	return room, true
}

// handleOffer 推流端 → 指定观众。只接受房间当前登记的推流端
func (r *Router) handleOffer(s *Session, req *sig.OfferRequest) {
	room, ok := r.resolveRoom(s, req.Room)
	if !ok {
		return
	}
	if !room.isPublisher(s) {
		r.reply(s, sig.Error(sig.ReasonNotRegistered))
		return
	}
	viewer, ok := room.Viewers[req.ViewerID]
	if !ok {
		r.reply(s, sig.Error(sig.ReasonViewerNotFound))
		return
	}
	r.reply(viewer, &sig.Message{Type: sig.MsgTypeOffer, Offer: req.Offer, ViewerID: req.ViewerID})
}

// handleAnswer 观众 → 推流端，viewerId 总是取发送者自己的 ID
func (r *Router) handleAnswer(s *Session, req *sig.AnswerRequest) {
	room, ok := r.resolveRoom(s, req.Room)
	if !ok {
		return
	}
	if !room.isViewer(s) {
		r.reply(s, sig.Error(sig.ReasonNotRegistered))
		return
	}
	if room.Publisher == nil {
		r.reply(s, sig.Error(sig.ReasonPublisherNotFound))
		return
	}
	r.reply(room.Publisher, &sig.Message{Type: sig.MsgTypeAnswer, ViewerID: s.ViewerID, Answer: req.Answer})
}

// handleCandidate 双向转发。发送者不在房间或对端不在时静默丢弃
func (r *Router) handleCandidate(s *Session, req *sig.CandidateRequest) {
	room, ok := r.resolveRoom(s, req.Room)
	if !ok {
		return
	}
	switch {
	case room.isPublisher(s):
		if viewer, ok := room.Viewers[req.ViewerID]; ok {
			r.reply(viewer, &sig.Message{Type: sig.MsgTypeCandidate, Candidate: req.Candidate, ViewerID: req.ViewerID})
		}
	case room.isViewer(s):
		if room.Publisher != nil {
			r.reply(room.Publisher, &sig.Message{Type: sig.MsgTypeCandidate, Candidate: req.Candidate, ViewerID: s.ViewerID})
		}
	default:
		r.logger.Debug("dropping candidate from unregistered session", zap.String("room", room.ID), zap.String("conn", s.ID))
	}
}

// -------------------- leave / 断线 --------------------

// teardown 把会话从房间中移除。只有房间仍然引用该会话时才会生效，
// 因此重复调用或对已被替换的会话调用都不会产生任何消息。
func (r *Router) teardown(s *Session, cause string) {
	if s.RoomID == "" {
		return
	}
	roomID := s.RoomID
	s.RoomID = ""

	room, ok := r.registry.Get(roomID)
	if !ok {
		return
	}

	switch s.Role {
	case sig.RoleViewer:
		if room.Viewers[s.ViewerID] != s {
			break
		}
		room.RemoveViewer(s.ViewerID)
		r.ledger.Leave(s.ViewerID)
		if room.Publisher != nil {
			r.reply(room.Publisher, &sig.Message{Type: sig.MsgTypeViewerLeft, ViewerID: s.ViewerID})
		}
		r.logger.Info("viewer left",
			zap.String("room", roomID),
			zap.String("viewer", s.ViewerID),
			zap.String("cause", cause),
		)
	case sig.RolePublisher:
		if room.Publisher != s {
			break
		}
		r.broadcast(sig.Notice(sig.MsgTypePublisherLeft), room.viewerSessions(room.Controller)...)
		room.Publisher = nil
		room.StreamActive = false
		room.CurrentAd = nil
		r.logger.Info("publisher left", zap.String("room", roomID), zap.String("cause", cause))
	case sig.RoleController:
		if room.Controller != s {
			break
		}
		room.Controller = nil
		r.logger.Info("controller left", zap.String("room", roomID), zap.String("cause", cause))
	}

	if r.registry.CleanupIfEmpty(roomID) {
		r.logger.Info("room deleted", zap.String("room", roomID))
	}
}

// -------------------- 投递 --------------------

func (r *Router) reply(s *Session, msg *sig.Message) {
	if !s.Send(msg) {
		r.dropped.Add(1)
	}
}

// broadcast 只序列化一次，发给所有目标会话，nil 目标被跳过
func (r *Router) broadcast(msg *sig.Message, targets ...*Session) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal broadcast", zap.Error(err))
		return
	}
	for _, t := range targets {
		if t == nil {
			continue
		}
		if !t.sendRaw(b) {
			r.dropped.Add(1)
		}
	}
}
