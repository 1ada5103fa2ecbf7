package server

import (
	sig "live-relay/pkg/signal"

	"go.uber.org/zap"
)

// handleControl 执行房间级控制动作。
// 除 stop-stream 外，所有动作都要求房间内已有推流端。
func (r *Router) handleControl(s *Session, req *sig.ControlRequest) {
	room, ok := r.resolveRoom(s, req.Room)
	if !ok {
		return
	}
	if !req.Action.Valid() {
		r.reply(s, sig.Error(sig.ReasonUnknownAction))
		return
	}
	if req.Action != sig.ActionStopStream && room.Publisher == nil {
		r.reply(s, sig.Error(sig.ReasonNoPublisher))
		return
	}

	r.logger.Info("control action",
		zap.String("room", room.ID),
		zap.String("conn", s.ID),
		zap.String("action", string(req.Action)),
	)

	switch req.Action {
	case sig.ActionStartStream:
		room.StreamActive = true
		r.broadcast(sig.Notice(sig.MsgTypeStreamStarted), room.viewerSessions(room.Controller)...)

	case sig.ActionStopStream:
		room.StreamActive = false
		r.broadcast(sig.Notice(sig.MsgTypeStreamStopped), room.viewerSessions(room.Controller)...)

	case sig.ActionMuteAudio:
		r.broadcast(sig.Notice(sig.MsgTypeMuteAudio), room.viewerSessions()...)

	case sig.ActionPlayAd:
		ad := &Ad{ID: req.AdID, URL: req.AdURL, Muted: req.MuteAudio}
		room.CurrentAd = ad
		r.broadcast(playAdMessage(ad), room.viewerSessions()...)
		if room.Controller != nil {
			r.reply(room.Controller, &sig.Message{Type: sig.MsgTypeAdStarted, AdID: ad.ID})
		}

	case sig.ActionResumeStream:
		room.CurrentAd = nil
		r.broadcast(sig.Notice(sig.MsgTypeResumeStream), room.viewerSessions()...)
		if room.Controller != nil {
			r.reply(room.Controller, sig.Notice(sig.MsgTypeAdStopped))
		}

	case sig.ActionSendSubtitle:
		text := req.Text
		r.broadcast(&sig.Message{Type: sig.MsgTypeSubtitle, Text: &text}, room.viewerSessions()...)

	case sig.ActionClearSubtitle:
		r.broadcast(sig.Notice(sig.MsgTypeClearSubtitle), room.viewerSessions()...)

	default:
		r.reply(s, sig.Error(sig.ReasonUnknownAction))
	}
}

func playAdMessage(ad *Ad) *sig.Message {
	muted := ad.Muted
	return &sig.Message{
		Type:      sig.MsgTypePlayAd,
		AdID:      ad.ID,
		AdURL:     ad.URL,
		MuteAudio: &muted,
	}
}
