package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/protocol"
	"github.com/1ureka/circletrack/internal/util"
)

// ErrChannelClosed is returned by Recv once the underlying DataChannel closes.
var ErrChannelClosed = errors.New("data channel closed")

const (
	chatInboxSize  = 64
	videoInboxSize = 4
)

// gate is closed once when a DataChannel closes.
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) close() {
	g.once.Do(func() { close(g.ch) })
}

func (g *gate) done() <-chan struct{} {
	return g.ch
}

// Chat is the reliable text channel carrying protocol messages. It satisfies
// protocol.Channel.
type Chat struct {
	dc     *webrtc.DataChannel
	inbox  chan string
	closed *gate
}

var _ protocol.Channel = (*Chat)(nil)

func newChat(dc *webrtc.DataChannel) *Chat {
	c := &Chat{
		dc:     dc,
		inbox:  make(chan string, chatInboxSize),
		closed: newGate(),
	}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			util.LogWarning("%v: binary message on %s channel", protocol.ErrProtocolViolation, ChatLabel)
			return
		}
		util.Stats.AddMessageRecv()
		select {
		case c.inbox <- string(msg.Data):
		case <-c.closed.done():
		}
	})
	dc.OnClose(func() {
		util.LogDebug("DataChannel %q closed", ChatLabel)
		c.closed.close()
	})

	return c
}

// SendText writes one text message.
func (c *Chat) SendText(text string) error {
	if c == nil || c.dc == nil {
		return fmt.Errorf("%w: nil chat channel", protocol.ErrInvalidArgument)
	}
	if err := c.dc.SendText(text); err != nil {
		return err
	}
	util.Stats.AddMessageSent()
	return nil
}

// Recv blocks until the next text message arrives. Messages already received
// are still delivered after the channel closes.
func (c *Chat) Recv(ctx context.Context) (string, error) {
	select {
	case text := <-c.inbox:
		return text, nil
	default:
	}

	select {
	case text := <-c.inbox:
		return text, nil
	case <-c.closed.done():
		return "", ErrChannelClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Done is closed when the channel closes.
func (c *Chat) Done() <-chan struct{} { return c.closed.done() }

// Video carries encoded frames. Writes are serialized by a sender goroutine;
// inbound frames are decoded on arrival and, when the reader falls behind,
// the oldest undelivered frame is dropped. It satisfies media.Track.
type Video struct {
	sender *sender
	inbox  chan media.Frame
	closed *gate
}

var _ media.Track = (*Video)(nil)

func newVideo(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}) *Video {
	v := &Video{
		inbox:  make(chan media.Frame, videoInboxSize),
		closed: newGate(),
	}
	v.sender = newSender(ctx, dc, openSignal, v.closed.done())

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		frame, err := media.Decode(msg.Data)
		if err != nil {
			util.LogWarning("dropping video message: %v", err)
			return
		}
		util.Stats.AddFrameRecv()
		v.push(frame)
	})
	dc.OnClose(func() {
		util.LogDebug("DataChannel %q closed", VideoLabel)
		v.closed.close()
	})

	return v
}

// push delivers f, evicting the oldest queued frame when the inbox is full.
func (v *Video) push(f media.Frame) {
	for {
		select {
		case v.inbox <- f:
			return
		default:
		}
		select {
		case <-v.inbox:
		default:
		}
	}
}

// WriteFrame queues f for transmission. Once a write has failed or the
// channel has closed, every call returns that error.
func (v *Video) WriteFrame(ctx context.Context, f media.Frame) error {
	if f.Image == nil {
		return media.ErrInvalidArgument
	}
	select {
	case <-v.closed.done():
		return ErrChannelClosed
	default:
	}
	return v.sender.send(ctx, f)
}

// Recv blocks until the next decoded frame arrives.
func (v *Video) Recv(ctx context.Context) (media.Frame, error) {
	select {
	case f := <-v.inbox:
		return f, nil
	case <-v.closed.done():
		return media.Frame{}, ErrChannelClosed
	case <-ctx.Done():
		return media.Frame{}, ctx.Err()
	}
}
