package channels

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Email delivers plain text mail over SMTP.
type Email struct {
	dialer *gomail.Dialer
	from   string
	send   func(m *gomail.Message) error
}

// NewEmail builds an SMTP sender.
func NewEmail(host string, port int, username, password, from string) *Email {
	dialer := gomail.NewDialer(host, port, username, password)
	e := &Email{dialer: dialer, from: from}
	e.send = func(m *gomail.Message) error { return dialer.DialAndSend(m) }
	return e
}

// SendEmail sends one message. gomail has no context support, so the send
// keeps running in the background if ctx expires first.
func (e *Email) SendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return errors.New("empty recipient")
	}
	msg := e.message(to, subject, body)

	done := make(chan error, 1)
	go func() { done <- e.send(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (e *Email) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}
