package sender

import (
	"context"
	"time"
)

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type Email struct {
	To      string
	Subject string
	HTML    string
	ReplyTo string
}

// EmailSender delivers one email. Each call is independent of any other.
type EmailSender interface {
	SendEmail(ctx context.Context, email Email) (SendResult, error)
}
