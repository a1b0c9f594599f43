package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/circletrack/internal/protocol"
)

func TestCandidateWireFormat(t *testing.T) {
	mid := "0"
	index := uint16(0)
	msg := Candidate(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"candidate","candidate":"candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host","id":"0","label":0}`, string(data))

	decoded, err := decode(data)
	require.NoError(t, err)
	init := decoded.CandidateInit()
	require.NotNil(t, init.SDPMid)
	require.NotNil(t, init.SDPMLineIndex)
	assert.Equal(t, "0", *init.SDPMid)
	assert.Equal(t, uint16(0), *init.SDPMLineIndex)
}

func TestDescriptionMessages(t *testing.T) {
	data, err := json.Marshal(Offer("v=0"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(data))

	desc, err := Answer("v=0").Description()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, desc.Type)

	_, err = Bye().Description()
	assert.ErrorIs(t, err, protocol.ErrProtocolViolation)
}

func TestDecodeRejects(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"hello"}`,
		`{"type":"offer"}`,
		`{"type":"candidate"}`,
		`{}`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := decode([]byte(raw))
			assert.ErrorIs(t, err, protocol.ErrProtocolViolation)
		})
	}

	msg, err := decode([]byte(`{"type":"bye"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgTypeBye, msg.Type)
}

func TestTransportErrorMatchesSentinel(t *testing.T) {
	var err error = &TransportError{Op: "receive", Err: errPipeClosed}
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errPipeClosed)
	assert.Contains(t, err.Error(), "signaling receive")
}
