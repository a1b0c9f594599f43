package signaling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/util"
)

// ErrTransport matches every TransportError through errors.Is.
var ErrTransport = errors.New("signaling transport failure")

// TransportError reports a failure of the signaling transport itself. It is
// fatal to the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string        { return fmt.Sprintf("signaling %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Transport is a reliable ordered carrier of signaling messages.
//
// Receive returns an error wrapping protocol.ErrProtocolViolation for a
// message that could not be decoded; the transport stays usable. Any other
// non-context error is a *TransportError.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Connect opens the signaling transport selected by cfg. The answering role
// listens for a single peer on cfg.Address(); the offering role dials it,
// retrying until the listener is up or ctx ends.
func Connect(ctx context.Context, cfg *config.Config) (Transport, error) {
	addr := cfg.Address()

	switch {
	case cfg.Signaling == config.SignalingWS && cfg.Role.IsInitiator():
		return DialWS(ctx, "ws://"+addr+"/ws")
	case cfg.Signaling == config.SignalingWS:
		return AcceptWS(ctx, addr)
	case cfg.Role.IsInitiator():
		return DialTCP(ctx, addr)
	default:
		return AcceptTCP(ctx, addr)
	}
}

// newDialBackOff returns the retry policy for dialing a listening peer.
func newDialBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = 0 // until ctx ends
	return backoff.WithContext(b, ctx)
}

// dialWithRetry runs dial under newDialBackOff, logging every failed attempt.
func dialWithRetry[T any](ctx context.Context, target string, dial func() (T, error)) (T, error) {
	notify := func(err error, wait time.Duration) {
		util.LogDebug("signaling peer %s not reachable (%v), retrying in %s", target, err, wait.Round(time.Millisecond))
	}
	conn, err := backoff.RetryNotifyWithData[T](dial, newDialBackOff(ctx), notify)
	if err != nil {
		if ctx.Err() != nil {
			return conn, ctx.Err()
		}
		return conn, &TransportError{Op: "dial", Err: err}
	}
	return conn, nil
}
