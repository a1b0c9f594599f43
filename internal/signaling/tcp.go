package signaling

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/1ureka/circletrack/internal/util"
)

// tcpTransport carries newline-delimited JSON messages over a TCP connection.
type tcpTransport struct {
	conn   net.Conn
	reader *bufio.Reader

	mu        sync.Mutex // serializes writes
	closeOnce sync.Once
	closeErr  error
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	return &tcpTransport{conn: conn, reader: bufio.NewReader(conn)}
}

// AcceptTCP listens on addr and returns a transport for the first peer that
// connects. The listener is closed afterwards, so later peers are refused.
func AcceptTCP(ctx context.Context, addr string) (Transport, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "listen", Err: err}
	}
	defer listener.Close()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	util.LogInfo("waiting for signaling peer on tcp://%s", listener.Addr())
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "accept", Err: err}
	}

	util.LogInfo("signaling peer connected from %s", conn.RemoteAddr())
	return newTCPTransport(conn), nil
}

// DialTCP connects to a listening peer at addr, retrying with exponential
// backoff until it succeeds or ctx ends.
func DialTCP(ctx context.Context, addr string) (Transport, error) {
	var dialer net.Dialer
	conn, err := dialWithRetry(ctx, addr, func() (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	})
	if err != nil {
		return nil, err
	}

	util.LogInfo("connected to signaling peer tcp://%s", addr)
	return newTCPTransport(conn), nil
}

func (t *tcpTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode signaling message: %w", err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { t.conn.SetWriteDeadline(time.Now()) })
	defer stop()

	if _, err := t.conn.Write(data); err != nil {
		if ctx.Err() != nil {
			t.conn.SetWriteDeadline(time.Time{})
			return ctx.Err()
		}
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (t *tcpTransport) Receive(ctx context.Context) (Message, error) {
	stop := context.AfterFunc(ctx, func() { t.conn.SetReadDeadline(time.Now()) })
	defer stop()

	line, err := t.reader.ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			t.conn.SetReadDeadline(time.Time{})
			return Message{}, ctx.Err()
		}
		return Message{}, &TransportError{Op: "receive", Err: err}
	}
	return decode(line)
}

func (t *tcpTransport) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.conn.Close() })
	return t.closeErr
}
