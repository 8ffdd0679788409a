// Package delivery sends finished reports to users.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ReportFilename is the attachment name used for recommendation reports.
const ReportFilename = "recommended_asanas.pdf"

// ErrInvalidRecipient is returned for malformed recipient addresses.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outgoing email.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Channel delivers messages.
type Channel interface {
	Send(ctx context.Context, msg *Message) error
}

// ValidateRecipient checks that addr is a single bare email address.
func ValidateRecipient(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidRecipient)
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}
	if parsed.Address != addr {
		return fmt.Errorf("%w: expected a bare address, got %q", ErrInvalidRecipient, addr)
	}
	return nil
}

// ReportMessage builds the email that carries a recommendation report.
func ReportMessage(to, subject string, pdf []byte) *Message {
	return &Message{
		To:      strings.TrimSpace(to),
		Subject: subject,
		Body:    "Namaste,\r\n\r\nYour recommended yoga asanas are attached.\r\n",
		Attachments: []Attachment{{
			Filename:    ReportFilename,
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}
}
