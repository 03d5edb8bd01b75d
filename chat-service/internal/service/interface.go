package service

import (
	"context"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/hub"
)

// Transport is one live duplex connection as the gateway sees it.
type Transport interface {
	hub.Conn
	// ReadPump blocks, handing each inbound text frame to handle, until the
	// connection ends.
	ReadPump(handle func(text string)) error
	CloseWithReason(code int, reason string)
}

// RelayPublisher takes events for durable storage without blocking.
type RelayPublisher interface {
	Publish(ev *domain.ChatEvent) bool
}

// ChatService runs one gateway session per connection.
type ChatService interface {
	// Serve authenticates and authorizes conn for roomID, then relays its
	// messages until it disconnects or ctx ends.
	Serve(ctx context.Context, conn Transport, roomID, credential string) error
}
