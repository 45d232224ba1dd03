// Package mail renders and delivers the transactional emails sent by the
// auth flows.  Delivery is pluggable: SMTP, the message queue, or the log.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// Template names.
const (
	Welcome       = "welcome"
	PasswordReset = "passwordReset"
)

// Message asks for Template to be rendered for one recipient.  URL is the
// call to action (profile page, reset link).
type Message struct {
	Template string `json:"template"`
	To       string `json:"to"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

// FirstName is used in greetings.
func (m Message) FirstName() string {
	for i, r := range m.Name {
		if r == ' ' {
			return m.Name[:i]
		}
	}
	return m.Name
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type tmpl struct {
	subject string
	body    *template.Template
}

var templates = map[string]tmpl{
	Welcome: {
		subject: "Welcome to the Natours Family!",
		body: template.Must(template.New(Welcome).Parse(`Hi {{.FirstName}},

Welcome to Natours, we're glad to have you!

Upload a profile photo and start exploring our tours: {{.URL}}

The Natours team
`)),
	},
	PasswordReset: {
		subject: "Your password reset token (valid for only 10 minutes)",
		body: template.Must(template.New(PasswordReset).Parse(`Hi {{.FirstName}},

Forgot your password? Submit a PATCH request with your new password and
passwordConfirm to: {{.URL}}

If you didn't forget your password, please ignore this email.
`)),
	},
}

// Render returns the subject and plain text body of msg.
func Render(msg Message) (subject, body string, err error) {
	t, ok := templates[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("mail: unknown template %q", msg.Template)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, msg); err != nil {
		return "", "", fmt.Errorf("mail: render %s: %w", msg.Template, err)
	}
	return t.subject, buf.String(), nil
}
