package transport

import (
	"context"
	"fmt"

	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 8          // frames queued ahead of the writer
)

// frameWriter is the part of *webrtc.DataChannel the sender drives.
type frameWriter interface {
	Send(data []byte) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
}

// sender owns all writes to the video DataChannel. Frames wait until the
// channel opens, are held back while the SCTP buffer is above the high water
// mark, and are encoded just before they go out. The first write failure
// stops the sender and is returned to every later writer.
type sender struct {
	inbox   chan media.Frame
	drained chan struct{}

	stopped *gate
	err     error // set before stopped closes
}

// newSender starts the writer loop for w. The loop ends when ctx ends, when
// closed fires, or on the first failed write.
func newSender(ctx context.Context, w frameWriter, opened, closed <-chan struct{}) *sender {
	s := &sender{
		inbox:   make(chan media.Frame, sendBufferSize),
		drained: make(chan struct{}, 1),
		stopped: newGate(),
	}

	w.SetBufferedAmountLowThreshold(lowWaterMark)
	w.OnBufferedAmountLow(func() {
		select {
		case s.drained <- struct{}{}:
		default:
		}
	})

	go func() {
		s.stop(s.loop(ctx, w, opened, closed))
	}()
	return s
}

func (s *sender) stop(err error) {
	s.err = err
	s.stopped.close()
}

func (s *sender) loop(ctx context.Context, w frameWriter, opened, closed <-chan struct{}) error {
	select {
	case <-opened:
	case <-closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		var f media.Frame
		select {
		case f = <-s.inbox:
		case <-closed:
			return ErrChannelClosed
		case <-ctx.Done():
			return ctx.Err()
		}

		if w.BufferedAmount() > highWaterMark {
			select {
			case <-s.drained:
			case <-closed:
				return ErrChannelClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		data, err := media.Encode(f)
		if err != nil {
			util.LogWarning("dropping frame %d: %v", f.Seq, err)
			continue
		}
		if err := w.Send(data); err != nil {
			util.LogError("failed to send frame %d (%d bytes): %v", f.Seq, len(data), err)
			return fmt.Errorf("send frame %d: %w", f.Seq, err)
		}
		util.Stats.AddFrameSent()
	}
}

// send queues f. It blocks while the queue is full and fails once the
// writer has stopped or ctx is done.
func (s *sender) send(ctx context.Context, f media.Frame) error {
	select {
	case <-s.stopped.done():
		return s.err
	default:
	}

	select {
	case s.inbox <- f:
		return nil
	case <-s.stopped.done():
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
