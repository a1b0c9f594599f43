package signaling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/circletrack/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer accepts the first WebSocket peer on /ws (private).
type wsServer struct {
	listener net.Listener
	srv      *http.Server
	connCh   chan *websocket.Conn
}

// start begins listening on addr.
func (s *wsServer) start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start WS server: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		_ = s.srv.Serve(listener)
	}()

	return nil
}

func (s *wsServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Only accept the first peer.
	select {
	case s.connCh <- conn:
	default:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		conn.Close()
	}
}

// waitForPeer blocks until a peer connects or context is cancelled.
func (s *wsServer) waitForPeer(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close stops accepting new peers. Hijacked connections stay open.
func (s *wsServer) close() {
	if s.srv != nil {
		s.srv.Close()
	}
}

// wsTransport carries one JSON text frame per message.
type wsTransport struct {
	conn *websocket.Conn
	srv  *wsServer // nil on the dialing side

	mu        sync.Mutex // serializes writes
	closeOnce sync.Once
	closeErr  error
}

// AcceptWS serves /ws on addr and returns a transport for the first peer
// that upgrades. Later peers are refused with a policy-violation close.
func AcceptWS(ctx context.Context, addr string) (Transport, error) {
	srv := &wsServer{connCh: make(chan *websocket.Conn, 1)}
	if err := srv.start(addr); err != nil {
		return nil, &TransportError{Op: "listen", Err: err}
	}

	util.LogInfo("waiting for signaling peer on ws://%s/ws", srv.listener.Addr())
	conn, err := srv.waitForPeer(ctx)
	if err != nil {
		srv.close()
		return nil, err
	}

	util.LogInfo("signaling peer connected from %s", conn.RemoteAddr())
	return &wsTransport{conn: conn, srv: srv}, nil
}

// DialWS connects to a WebSocket signaling URL, retrying with exponential
// backoff until it succeeds or ctx ends.
func DialWS(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.DefaultDialer
	conn, err := dialWithRetry(ctx, url, func() (*websocket.Conn, error) {
		conn, _, err := dialer.DialContext(ctx, url, nil)
		return conn, err
	})
	if err != nil {
		return nil, err
	}

	util.LogInfo("connected to signaling peer %s", url)
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { t.conn.SetWriteDeadline(time.Now()) })
	defer stop()

	if err := t.conn.WriteJSON(msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (t *wsTransport) Receive(ctx context.Context) (Message, error) {
	stop := context.AfterFunc(ctx, func() { t.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			return Message{}, &TransportError{Op: "receive", Err: err}
		}
		if kind != websocket.TextMessage {
			util.LogDebug("ignoring non-text signaling frame (type=%d)", kind)
			continue
		}
		return decode(data)
	}
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		t.mu.Unlock()

		t.closeErr = t.conn.Close()
		if t.srv != nil {
			t.srv.close()
		}
	})
	if errors.Is(t.closeErr, net.ErrClosed) {
		return nil
	}
	return t.closeErr
}
