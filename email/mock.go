package email

import (
	"context"
	"sync"

	"github.com/google/uuid"

	study "github.com/goliatone/go-study"
)

// MockMessage is a captured outbound email.
type MockMessage struct {
	ID      string
	To      string
	Subject string
	Body    string
}

// Mock records messages instead of delivering them. Safe for concurrent
// use; tests and development builds read back Sent.
type Mock struct {
	mu     sync.Mutex
	sent   []MockMessage
	logger study.Logger
}

func NewMock(logger study.Logger) *Mock {
	return &Mock{logger: logger}
}

func (m *Mock) Send(_ context.Context, to, subject, htmlBody string) error {
	msg := MockMessage{
		ID:      uuid.New().String(),
		To:      to,
		Subject: subject,
		Body:    htmlBody,
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("mock email %s sent to %s with subject %q", msg.ID, to, subject)
	}
	return nil
}

// Sent returns a copy of every message recorded so far.
func (m *Mock) Sent() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
