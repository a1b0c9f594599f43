package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/1ureka/circletrack/internal/detect"
	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/metrics"
	"github.com/1ureka/circletrack/internal/protocol"
	"github.com/1ureka/circletrack/internal/util"
)

// ReplyBudget is how long a reply waits for a detection result before
// falling back to pong.
const ReplyBudget = 50 * time.Millisecond

// Detections is the detection pool as seen by the client handler.
type Detections interface {
	Submit(f media.Frame) bool
	Latest(ctx context.Context, wait time.Duration) (detect.Result, error)
}

// Client is the protocol handler of the answering role.
type Client struct {
	pool   Detections
	ch     protocol.Sender
	budget time.Duration
}

// NewClient returns a handler replying on ch with results from pool.
func NewClient(pool Detections, ch protocol.Sender) *Client {
	return &Client{pool: pool, ch: ch, budget: ReplyBudget}
}

// HandleMessage answers any inbound text: with the newest ready detection as
// "<x>,<y>", or with "pong" when none is ready within the reply budget. Only
// a failure to send is returned.
func (c *Client) HandleMessage(ctx context.Context, text string) error {
	if msg, err := protocol.Parse(text); err != nil {
		metrics.ProtocolViolations.Inc()
		util.LogDebug("replying to non-protocol message %q", text)
	} else {
		metrics.Messages.WithLabelValues("received", msg.Kind.String()).Inc()
	}

	reply := protocol.Pong()
	result, err := c.pool.Latest(ctx, c.budget)
	switch {
	case err == nil:
		reply = protocol.Report(result.Coord)
	case errors.Is(err, detect.ErrDetectionTimeout):
		metrics.DetectionFallbacks.Inc()
	default:
		return err
	}

	if err := protocol.Send(c.ch, reply); err != nil {
		return fmt.Errorf("failed to send %s: %w", reply.Kind, err)
	}
	metrics.Messages.WithLabelValues("sent", reply.Kind.String()).Inc()
	if reply.Kind == protocol.KindReport {
		util.Stats.AddReport()
		util.LogDebug("reported %s for tick %d", reply.Coord, result.Index)
	}
	return nil
}

// Consume feeds every frame from src to pool until src fails or ctx ends.
// Frames arriving while every worker is busy are skipped.
func Consume(ctx context.Context, pool Detections, src media.Source) error {
	for {
		frame, err := src.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("video track ended: %w", err)
		}
		if !pool.Submit(frame) {
			metrics.FramesSkipped.Inc()
		}
	}
}
