package transport

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/media"
)

type endpoint struct {
	tr    *Transport
	chat  chan *Chat
	video chan *Video
	cands chan webrtc.ICECandidateInit
}

func newEndpoint(t *testing.T, ctx context.Context, role config.Role) *endpoint {
	t.Helper()
	e := &endpoint{
		chat:  make(chan *Chat, 1),
		video: make(chan *Video, 1),
		cands: make(chan webrtc.ICECandidateInit, 64),
	}
	tr, err := New(ctx, role, nil, Handlers{
		OnChat:      func(c *Chat) { e.chat <- c },
		OnVideo:     func(v *Video) { e.video <- v },
		OnCandidate: func(c webrtc.ICECandidateInit) { e.cands <- c },
	})
	require.NoError(t, err)
	e.tr = tr
	t.Cleanup(func() { tr.Close() })
	return e
}

// trickle forwards candidates from src to dst until ctx ends.
func trickle(ctx context.Context, src, dst *endpoint) {
	for {
		select {
		case c := <-src.cands:
			_ = dst.tr.AddICECandidate(c)
		case <-ctx.Done():
			return
		}
	}
}

func TestLoopbackSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping WebRTC loopback in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	server := newEndpoint(t, ctx, config.RoleOffer)
	client := newEndpoint(t, ctx, config.RoleAnswer)
	go trickle(ctx, server, client)
	go trickle(ctx, client, server)

	offer, err := server.tr.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, server.tr.SetLocalDescription(offer))
	require.NoError(t, client.tr.SetRemoteDescription(offer))

	answer, err := client.tr.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, client.tr.SetLocalDescription(answer))
	require.NoError(t, server.tr.SetRemoteDescription(answer))

	recv := func(ch <-chan *Chat) *Chat {
		select {
		case c := <-ch:
			return c
		case <-ctx.Done():
			t.Fatal("chat channel never opened")
			return nil
		}
	}
	serverChat, clientChat := recv(server.chat), recv(client.chat)

	var serverVideo, clientVideo *Video
	for _, pair := range []struct {
		ch  chan *Video
		dst **Video
	}{{server.video, &serverVideo}, {client.video, &clientVideo}} {
		select {
		case v := <-pair.ch:
			*pair.dst = v
		case <-ctx.Done():
			t.Fatal("video channel never opened")
		}
	}

	// Chat both ways.
	require.NoError(t, serverChat.SendText("ping"))
	text, err := clientChat.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", text)

	require.NoError(t, clientChat.SendText("55,55"))
	text, err = serverChat.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "55,55", text)

	// One frame from server to client.
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	img.SetGray(10, 5, colorWhite)
	require.NoError(t, serverVideo.WriteFrame(ctx, media.Frame{Seq: 7, Index: 3, Image: img}))

	frame, err := clientVideo.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), frame.Seq)
	assert.Equal(t, 3, frame.Index)
	assert.Equal(t, img.Pix, frame.Image.Pix)

	require.NoError(t, server.tr.Close())
	assert.ErrorIs(t, server.tr.Err(), ErrClosed)
	<-server.tr.Done()
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newEndpoint(t, ctx, config.RoleAnswer)
	mid := "0"
	c := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host", SDPMid: &mid}

	require.NoError(t, e.tr.AddICECandidate(c))
	e.tr.iceMu.Lock()
	assert.Len(t, e.tr.pending, 1)
	e.tr.iceMu.Unlock()
}

func TestTransportEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newEndpoint(t, ctx, config.RoleOffer)

	cancel()
	select {
	case <-e.tr.Done():
	case <-time.After(time.Second):
		t.Fatal("transport outlived its context")
	}
	assert.ErrorIs(t, e.tr.Err(), context.Canceled)
}
