// Package protocol defines the text messages exchanged on the chat channel:
// "ping", "pong" and coordinate reports "<x>,<y>".
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/1ureka/circletrack/internal/media"
)

var (
	// ErrProtocolViolation marks inbound text that is not a protocol message.
	// It is never fatal: callers log and drop the message.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrInvalidArgument marks a caller passing a value outside a documented contract.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Kind identifies the message variant.
type Kind uint8

const (
	KindPing Kind = iota + 1
	KindPong
	KindReport
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindReport:
		return "report"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Wire spellings of the fixed messages.
const (
	TextPing = "ping"
	TextPong = "pong"
)

// maxDigits bounds each coordinate so parsing cannot overflow an int.
const maxDigits = 9

// Message is one chat-channel message. Coord is only meaningful for KindReport.
type Message struct {
	Kind  Kind
	Coord media.Coordinate
}

func Ping() Message                     { return Message{Kind: KindPing} }
func Pong() Message                     { return Message{Kind: KindPong} }
func Report(c media.Coordinate) Message { return Message{Kind: KindReport, Coord: c} }

// Validate reports whether m can be put on the wire.
func (m Message) Validate() error {
	switch m.Kind {
	case KindPing, KindPong:
		return nil
	case KindReport:
		if m.Coord.X < 0 || m.Coord.Y < 0 {
			return fmt.Errorf("%w: negative coordinate %d,%d", ErrInvalidArgument, m.Coord.X, m.Coord.Y)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown message kind %s", ErrInvalidArgument, m.Kind)
	}
}

// String returns the wire text. Invalid messages render as "".
func (m Message) String() string {
	if m.Validate() != nil {
		return ""
	}
	switch m.Kind {
	case KindPing:
		return TextPing
	case KindPong:
		return TextPong
	default:
		return m.Coord.String()
	}
}

// Parse classifies inbound text. Anything other than "ping", "pong" or two
// comma-separated canonical decimal integers (no sign, whitespace or leading
// zero) is an ErrProtocolViolation.
func Parse(text string) (Message, error) {
	switch text {
	case TextPing:
		return Ping(), nil
	case TextPong:
		return Pong(), nil
	}

	xs, ys, ok := strings.Cut(text, ",")
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrProtocolViolation, text)
	}
	x, errX := parseUint(xs)
	y, errY := parseUint(ys)
	if errX != nil || errY != nil {
		return Message{}, fmt.Errorf("%w: %q", ErrProtocolViolation, text)
	}
	return Report(media.Coordinate{X: x, Y: y}), nil
}

func parseUint(s string) (int, error) {
	if s == "" || len(s) > maxDigits || (len(s) > 1 && s[0] == '0') {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
