package protocol

import (
	"context"
	"fmt"
)

// Sender is the send side of the reliable text channel.
type Sender interface {
	SendText(text string) error
}

// Channel is the reliable, ordered text channel available once a session is
// established.
type Channel interface {
	Sender
	// Recv blocks until the next inbound text message or ctx is done.
	Recv(ctx context.Context) (string, error)
}

// Send validates msg and writes its wire text to ch. A nil channel or an
// invalid message is rejected with ErrInvalidArgument before anything is sent.
func Send(ch Sender, msg Message) error {
	if ch == nil {
		return fmt.Errorf("%w: nil channel", ErrInvalidArgument)
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return ch.SendText(msg.String())
}
