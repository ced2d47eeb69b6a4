package email

import (
	"context"
	"fmt"
)

// Message is one outgoing email addressed to a single recipient.
type Message struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody,omitempty"`
	TextBody string `json:"TextBody,omitempty"`
	Tag      string `json:"Tag,omitempty"`
}

// Mailer delivers messages. With isMultiple the messages go out as one batch
// in which every recipient succeeds or fails on its own.
type Mailer interface {
	Send(ctx context.Context, msgs []Message, isMultiple bool) error
}

// RecipientError is the provider's rejection of a single message.
type RecipientError struct {
	To      string
	Code    int
	Message string
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("send to %s: code %d: %s", e.To, e.Code, e.Message)
}

// failureCount reports how many individual sends an error returned by Send stands for.
func failureCount(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
