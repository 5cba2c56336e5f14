// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sms defines the outbound SMS capability. Delivery is
// fire-and-forget from the core's perspective; a real gateway client plugs
// in behind Sender.
package sms

import (
	"context"
	"log/slog"
)

// Sender is the outbound SMS capability consumed by the OTP service.
type Sender interface {
	Send(ctx context.Context, mobile, message string) error
}

// LogSender writes outbound messages to the log instead of a gateway.
// Used in development and tests.
type LogSender struct{}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, mobile, message string) error {
	slog.Info("sms_send", "mobile", mobile, "message", message)
	return nil
}
