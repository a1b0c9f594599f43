package signaling

import (
	"context"
	"errors"
	"sync"
)

var errPipeClosed = errors.New("pipe closed")

// pipeTransport is one end of an in-memory signaling link.
type pipeTransport struct {
	in   <-chan Message
	out  chan<- Message
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	sent []Message
}

// newPipe returns two linked transports.
func newPipe() (*pipeTransport, *pipeTransport) {
	ab := make(chan Message, 32)
	ba := make(chan Message, 32)
	done := make(chan struct{})
	a := &pipeTransport{in: ba, out: ab, done: done}
	b := &pipeTransport{in: ab, out: ba, done: done}
	return a, b
}

func (p *pipeTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.sent = append(p.sent, msg)
	p.mu.Unlock()

	select {
	case <-p.done:
		return &TransportError{Op: "send", Err: errPipeClosed}
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return &TransportError{Op: "send", Err: errPipeClosed}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return Message{}, &TransportError{Op: "receive", Err: errPipeClosed}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *pipeTransport) sentTypes() []MessageType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]MessageType, len(p.sent))
	for i, m := range p.sent {
		types[i] = m.Type
	}
	return types
}
