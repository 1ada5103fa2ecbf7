package client

import (
	"encoding/json"
	"testing"

	sig "live-relay/pkg/signal"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlMessageEncoding(t *testing.T) {
	mute := false
	b, err := json.Marshal(message{
		Type:      sig.MsgTypeControl,
		Action:    sig.ActionPlayAd,
		AdID:      "42",
		AdURL:     "http://x/y.mp4",
		MuteAudio: &mute,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"control","action":"play-ad","adId":"42","adUrl":"http://x/y.mp4","muteAudio":false}`, string(b))

	// 服务器能解析客户端发出的消息
	req, err := sig.Decode(b)
	require.NoError(t, err)
	ctrl, ok := req.(*sig.ControlRequest)
	require.True(t, ok)
	assert.Equal(t, "42", ctrl.AdID)
}

func TestSessionDescription(t *testing.T) {
	offer := sig.Message{Type: sig.MsgTypeOffer, Offer: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)}
	sd, err := SessionDescription(offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, sd.Type)
	assert.Equal(t, "v=0", sd.SDP)

	answer := sig.Message{Type: sig.MsgTypeAnswer, Answer: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)}
	sd, err = SessionDescription(answer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, sd.Type)

	_, err = SessionDescription(sig.Message{Type: sig.MsgTypeOffer})
	assert.Error(t, err)
}

func TestCandidate(t *testing.T) {
	msg := sig.Message{
		Type:      sig.MsgTypeCandidate,
		Candidate: json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}`),
	}
	cand, err := Candidate(msg)
	require.NoError(t, err)
	require.NotNil(t, cand.SDPMid)
	assert.Equal(t, "0", *cand.SDPMid)

	_, err = Candidate(sig.Message{Type: sig.MsgTypeCandidate})
	assert.Error(t, err)
}
