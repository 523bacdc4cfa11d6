package store

import (
	"time"

	"outbound/internal/domain"
)

type MessageInsert struct {
	ID      string
	Contact domain.ContactRef
	Channel domain.Channel
	Content string
	Now     time.Time
}

// MessageFinalize moves a pending message to Status. Failure is nil for sent messages.
type MessageFinalize struct {
	ID            string
	Status        domain.MessageStatus
	Failure       *domain.FailureMetadata
	Provider      string
	ProviderMsgID string
	Now           time.Time
}
