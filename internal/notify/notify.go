// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package notify provides auth.Notifier implementations.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

// LogNotifier writes each message as a structured log record instead of
// sending mail. It is the delivery channel for development servers.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs msg at INFO.
func (n *LogNotifier) Send(ctx context.Context, msg auth.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return oops.Code("NOTIFY_NO_RECIPIENT").Errorf("message has no recipient")
	}
	n.logger.InfoContext(ctx, "notification",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
		"has_html", msg.HTML != "")
	return nil
}

// Recorder keeps every message it is asked to send. Setting Err makes
// Send fail after recording.
type Recorder struct {
	mu       sync.Mutex
	messages []auth.Message
	err      error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records msg and returns the configured failure, if any.
func (r *Recorder) Send(_ context.Context, msg auth.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.err
}

// FailWith makes later sends return err. Pass nil to recover.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []auth.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message sent to to.
func (r *Recorder) Last(to string) (auth.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if strings.EqualFold(r.messages[i].To, to) {
			return r.messages[i], true
		}
	}
	return auth.Message{}, false
}

var (
	_ auth.Notifier = (*LogNotifier)(nil)
	_ auth.Notifier = (*Recorder)(nil)
)
