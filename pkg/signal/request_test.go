package signal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Request
	}{
		{
			name: "join with name",
			in:   `{"type":"join","role":"viewer","room":"r1","name":"amy"}`,
			want: &JoinRequest{Role: RoleViewer, Room: "r1", Name: "amy"},
		},
		{
			name: "offer keeps payload bytes",
			in:   `{"type":"offer","viewerId":"v1","offer":{"type":"offer","sdp":"v=0\r\n"}}`,
			want: &OfferRequest{ViewerID: "v1", Offer: json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)},
		},
		{
			name: "answer with explicit room",
			in:   `{"type":"answer","room":"r2","viewerId":"v1","answer":{"sdp":"x"}}`,
			want: &AnswerRequest{Room: "r2", ViewerID: "v1", Answer: json.RawMessage(`{"sdp":"x"}`)},
		},
		{
			name: "candidate",
			in:   `{"type":"candidate","viewerId":"v9","candidate":{"candidate":"a=1"}}`,
			want: &CandidateRequest{ViewerID: "v9", Candidate: json.RawMessage(`{"candidate":"a=1"}`)},
		},
		{
			name: "play-ad without muteAudio",
			in:   `{"type":"control","action":"play-ad","adId":"42","adUrl":"http://x/y.mp4"}`,
			want: &ControlRequest{Action: ActionPlayAd, AdID: "42", AdURL: "http://x/y.mp4"},
		},
		{
			name: "play-ad muted",
			in:   `{"type":"control","action":"play-ad","adId":"42","adUrl":"u","muteAudio":true}`,
			want: &ControlRequest{Action: ActionPlayAd, AdID: "42", AdURL: "u", MuteAudio: true},
		},
		{
			name: "subtitle",
			in:   `{"type":"control","room":"r1","action":"send-subtitle","text":"hi"}`,
			want: &ControlRequest{Room: "r1", Action: ActionSendSubtitle, Text: "hi"},
		},
		{
			name: "leave",
			in:   `{"type":"leave"}`,
			want: &LeaveRequest{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"room":"r1"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"type":"subscribe"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestMessageEncoding(t *testing.T) {
	mute := false
	b, err := json.Marshal(&Message{Type: MsgTypePlayAd, AdID: "42", AdURL: "http://x/y.mp4", MuteAudio: &mute})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"play-ad","adId":"42","adUrl":"http://x/y.mp4","muteAudio":false}`, string(b))

	b, err = json.Marshal(Notice(MsgTypePublisherLeft))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"publisher-left"}`, string(b))

	b, err = json.Marshal(Info(ReasonPublisherReplaced))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"info","reason":"new-publisher-replaced"}`, string(b))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RolePublisher.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.True(t, RoleController.Valid())
	assert.False(t, RoleNone.Valid())
	assert.False(t, Role("admin").Valid())
}
