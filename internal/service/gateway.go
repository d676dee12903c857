package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"medtransit/internal/domain"
)

// Gateway is the interface for an outbound message carrier. The wire
// format of any particular SMS or email provider stays behind it.
type Gateway interface {
	// Send delivers one message and returns the provider's reference
	// for the accepted message.
	Send(ctx context.Context, channel domain.NotificationChannel, to, body string) (string, error)
}

// MockGateway is a mock implementation of Gateway for local runs and tests.
type MockGateway struct{}

// NewMockGateway creates a new mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Send logs the message and always succeeds.
func (g *MockGateway) Send(ctx context.Context, channel domain.NotificationChannel, to, body string) (string, error) {
	log.Printf("[GATEWAY] channel=%s to=%s body=%q", channel, to, body)
	return "mock-" + uuid.New().String(), nil
}

// Ensure MockGateway implements Gateway.
var _ Gateway = (*MockGateway)(nil)
