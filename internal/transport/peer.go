package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/circletrack/internal/util"
)

// Data channel labels.
const (
	ChatLabel  = "chat"
	VideoLabel = "video"
)

// newPeerConnection creates a PeerConnection whose internal logs go through
// the application logger. stun may be empty for loopback sessions.
func newPeerConnection(stun []string) (*webrtc.PeerConnection, error) {
	settings := webrtc.SettingEngine{LoggerFactory: util.NewPionLoggerFactory()}
	// Sessions default to 127.0.0.1, so loopback must be a usable path.
	settings.SetIncludeLoopbackCandidate(true)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))

	config := webrtc.Configuration{}
	if len(stun) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: stun}}
	}
	return api.NewPeerConnection(config)
}

// newChatChannel creates the ordered, reliable channel for protocol messages.
func newChatChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	return pc.CreateDataChannel(ChatLabel, &webrtc.DataChannelInit{Ordered: &ordered})
}

// newVideoChannel creates the frame channel. It is unordered and never
// retransmits: a late frame is worth less than the next one.
func newVideoChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := false
	maxRetransmits := uint16(0)
	return pc.CreateDataChannel(VideoLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
}
