// Package delivery hands one-time codes to the external messaging gateway.
// The engine never waits on the gateway delivering the message: a send
// succeeds once the gateway has accepted it.
package delivery

import (
	"context"
	"sync"

	id "consentd/pkg/domain"
)

// Channel names the gateway route for a message.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelAadhaar Channel = "aadhaar"
)

// Message is one outbound notification. Destination is the plaintext address;
// it must not be logged.
type Message struct {
	ConsentID   id.ConsentID
	Channel     Channel
	Destination string
	Body        string
}

// Sender delivers messages to the gateway.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Recorder keeps messages in memory. It backs local development and tests
// that need to read back a code.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Last returns the most recent message for a consent.
func (r *Recorder) Last(consentID id.ConsentID) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].ConsentID == consentID {
			return r.messages[i], true
		}
	}
	return Message{}, false
}

// Count returns how many messages were recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}
