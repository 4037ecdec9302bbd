// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package notify turns committed domain events into outbound notifications:
// transactional mail and a Kafka event stream.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// Message is a plain-text email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is the
// default when no mail provider is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg at info level.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "mail",
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.Body),
	)
	return nil
}

// WelcomeSink sends a welcome mail for every AccountRegistered event. Other
// events are ignored.
type WelcomeSink struct {
	mailer Mailer
	logger *slog.Logger
}

// NewWelcomeSink creates a WelcomeSink.
func NewWelcomeSink(mailer Mailer, logger *slog.Logger) *WelcomeSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WelcomeSink{mailer: mailer, logger: logger}
}

// Handle implements core.Sink.
func (s *WelcomeSink) Handle(ctx context.Context, e core.Event) error {
	if e.Type != core.EventAccountRegistered {
		return nil
	}
	var reg auth.AccountRegistered
	switch p := e.Payload.(type) {
	case auth.AccountRegistered:
		reg = p
	case *auth.AccountRegistered:
		reg = *p
	default:
		return oops.Code("NOTIFY_UNEXPECTED_PAYLOAD").
			With("event_type", string(e.Type)).
			With("payload_type", fmt.Sprintf("%T", e.Payload)).
			Errorf("unexpected payload")
	}

	msg := WelcomeMessage(reg)
	if err := s.mailer.Send(ctx, msg); err != nil {
		return oops.Code("NOTIFY_MAIL_FAILED").
			With("account_id", reg.AccountID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "welcome mail sent", "account_id", reg.AccountID.String())
	return nil
}

// WelcomeMessage renders the welcome mail for a new account.
func WelcomeMessage(reg auth.AccountRegistered) Message {
	name := strings.TrimSpace(reg.FirstName + " " + reg.LastName)
	greeting := name
	if greeting == "" {
		greeting = reg.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Welcome, %s!\n\n", greeting)
	b.WriteString("Thank you for registering with Craftsmen Platform.\n\n")
	if reg.Role == auth.RoleCraftsman {
		b.WriteString("You can now browse published projects and submit offers to customers.\n\n")
	} else {
		b.WriteString("You can now create projects and receive offers from craftsmen.\n\n")
	}
	b.WriteString("Best regards,\nThe Craftsmen Platform team\n")

	return Message{
		To:      reg.Email,
		ToName:  name,
		Subject: "Welcome to Craftsmen Platform!",
		Body:    b.String(),
	}
}

var _ core.Sink = (*WelcomeSink)(nil)
