// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. Ordering within a
// conversation follows creation time, which the repository key layout
// preserves.
type Message struct {
	ID             uuid.UUID
	ConversationID string
	SenderID       string
	Body           string
	CreatedAt      time.Time
}
