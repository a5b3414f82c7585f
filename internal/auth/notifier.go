// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/samber/oops"
)

// Message is one outbound notification. HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Notifier delivers messages. Callers treat delivery as best-effort and
// never retry.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// DefaultProductName prefixes message subjects when none is configured.
const DefaultProductName = "CyberWhale"

type codeMessageData struct {
	Product string
	Code    string
	Minutes int
}

var (
	verificationText = template.Must(template.New("verification.txt").Parse(
		`Welcome to {{.Product}}!

Your email verification code is: {{.Code}}

The code is valid for {{.Minutes}} minutes.
If you did not create an account, ignore this message.
`))

	verificationHTML = htmltemplate.Must(htmltemplate.New("verification.html").Parse(
		`<div style="font-family: monospace; background: #0a0a0a; color: #00ff9c; padding: 24px;">
<h2>Welcome to {{.Product}}</h2>
<p>Your email verification code:</p>
<p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.Code}}</strong></p>
<p>The code is valid for {{.Minutes}} minutes.</p>
</div>
`))

	resetText = template.Must(template.New("reset.txt").Parse(
		`A password reset was requested for your {{.Product}} account.

Your reset code is: {{.Code}}

The code is valid for {{.Minutes}} minutes.
If you did not request a reset, ignore this message.
`))

	resetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(
		`<div style="font-family: monospace; background: #0a0a0a; color: #00ff9c; padding: 24px;">
<h2>{{.Product}} password reset</h2>
<p>Your reset code:</p>
<p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.Code}}</strong></p>
<p>The code is valid for {{.Minutes}} minutes.</p>
</div>
`))
)

// ComposeCodeMessage renders the notification for a freshly issued code.
func ComposeCodeMessage(product string, purpose Purpose, to, code string, ttl time.Duration) (Message, error) {
	if product == "" {
		product = DefaultProductName
	}
	data := codeMessageData{Product: product, Code: code, Minutes: int(ttl / time.Minute)}

	var subject string
	var textTmpl *template.Template
	var htmlTmpl *htmltemplate.Template
	switch purpose {
	case PurposeVerification:
		subject = product + " - Email verification"
		textTmpl, htmlTmpl = verificationText, verificationHTML
	case PurposeReset:
		subject = product + " - Password reset"
		textTmpl, htmlTmpl = resetText, resetHTML
	default:
		return Message{}, oops.Code("MESSAGE_UNKNOWN_PURPOSE").With("purpose", string(purpose)).Errorf("unknown code purpose")
	}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, oops.Code("MESSAGE_RENDER_FAILED").With("part", "text").Wrap(err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, oops.Code("MESSAGE_RENDER_FAILED").With("part", "html").Wrap(err)
	}

	return Message{To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
