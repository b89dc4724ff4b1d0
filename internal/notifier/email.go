package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"

	"carwatch/internal/config"
)

type Email struct {
	cfg  config.EmailConfig
	send func(addr string, auth smtp.Auth, e *email.Email) error
}

func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{
		cfg: cfg,
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

func (n *Email) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = n.cfg.To
	e.Subject = n.cfg.Subject
	e.Text = []byte(text)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, e); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", addr, err)
	}
	return nil
}
