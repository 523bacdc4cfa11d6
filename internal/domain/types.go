package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func (c Channel) Valid() bool { return c == ChannelSMS || c == ChannelEmail }

type ContactKind string

const (
	KindLead     ContactKind = "lead"
	KindCustomer ContactKind = "customer"
)

func (k ContactKind) Valid() bool { return k == KindLead || k == KindCustomer }

type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

func (s MessageStatus) Terminal() bool { return s == StatusSent || s == StatusFailed }

const DirectionOutbound = "outbound"

// ContactRef identifies a contact in one of the two contact tables.
type ContactRef struct {
	ID   string      `json:"id" validate:"required"`
	Kind ContactKind `json:"type" validate:"required,oneof=lead customer"`
}

type Contact struct {
	ID    string      `json:"id"`
	Kind  ContactKind `json:"type"`
	Name  string      `json:"name"`
	Email string      `json:"email,omitempty"`
	Phone string      `json:"phone,omitempty"`
}

// Address returns the contact's address on ch, if it has one.
func (c Contact) Address(ch Channel) (string, bool) {
	var a string
	switch ch {
	case ChannelSMS:
		a = c.Phone
	case ChannelEmail:
		a = c.Email
	}
	a = strings.TrimSpace(a)
	return a, a != ""
}

// Credential is one row of the integrations table. Bundle is only
// interpreted by the transport registered for Provider.
type Credential struct {
	ID       string          `json:"id"`
	Provider string          `json:"provider"`
	Channel  Channel         `json:"channel"`
	Enabled  bool            `json:"enabled"`
	Bundle   json.RawMessage `json:"-"`
}

type FailureMetadata struct {
	Stage      Stage  `json:"stage"`
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

type Message struct {
	ID            string           `json:"id"`
	Contact       ContactRef       `json:"contact"`
	Direction     string           `json:"direction"`
	Channel       Channel          `json:"channel"`
	Content       string           `json:"content"`
	Status        MessageStatus    `json:"status"`
	Failure       *FailureMetadata `json:"metadata,omitempty"`
	Provider      string           `json:"provider,omitempty"`
	ProviderMsgID string           `json:"provider_msg_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type SendRequest struct {
	Contact ContactRef `json:"contact"`
	Channel Channel    `json:"channel" validate:"required,oneof=sms email"`
	Content string     `json:"content" validate:"required"`
}

// Template is the part of a send request shared by every recipient of a fan-out.
type Template struct {
	Channel Channel `json:"channel" validate:"required,oneof=sms email"`
	Content string  `json:"content" validate:"required"`
}

func (t Template) For(r Recipient) SendRequest {
	return SendRequest{Contact: r.Contact, Channel: t.Channel, Content: t.Content}
}

type Recipient struct {
	Contact ContactRef `json:"contact"`
	Name    string     `json:"name,omitempty"`
}

type DispatchOutcome struct {
	Recipient Recipient
	// Message is the zero value when the dispatch never reached the ledger.
	Message Message
	Err     *StageError
}

func (o DispatchOutcome) OK() bool { return o.Err == nil && o.Message.Status == StatusSent }

type RecipientResult struct {
	Recipient Recipient     `json:"recipient"`
	MessageID string        `json:"messageId,omitempty"`
	Status    MessageStatus `json:"status,omitempty"`
	Stage     Stage         `json:"stage,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type FanoutReport struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Sent       []RecipientResult `json:"sent"`
	Failures   []RecipientResult `json:"failures"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// DispatchJob is the queued form of a SendRequest.
type DispatchJob struct {
	RequestID   string      `json:"requestId"`
	ContactID   string      `json:"contactId"`
	ContactType ContactKind `json:"contactType"`
	Channel     Channel     `json:"channel"`
	Content     string      `json:"content"`
}

func NewDispatchJob(requestID string, req SendRequest) DispatchJob {
	return DispatchJob{
		RequestID:   requestID,
		ContactID:   req.Contact.ID,
		ContactType: req.Contact.Kind,
		Channel:     req.Channel,
		Content:     req.Content,
	}
}

func (j DispatchJob) Request() SendRequest {
	return SendRequest{
		Contact: ContactRef{ID: j.ContactID, Kind: j.ContactType},
		Channel: j.Channel,
		Content: j.Content,
	}
}
