package mail

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"

	"github.com/roberthaven/outreach/internal/config"
)

// SMTPGateway sends through a plain SMTP submission endpoint via gomail.
type SMTPGateway struct {
	cfg config.SMTPConfig
}

func NewSMTPGateway(cfg config.SMTPConfig) (*SMTPGateway, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host not configured (set SMTP_HOST)")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender not configured (set SMTP_FROM)")
	}
	return &SMTPGateway{cfg: cfg}, nil
}

func (g *SMTPGateway) Authenticate(ctx context.Context) (Handle, error) {
	dialer := gomail.NewDialer(g.cfg.Host, g.cfg.Port, g.cfg.Username, g.cfg.Password)
	sender, err := dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with smtp gateway: %w", err)
	}
	return &smtpHandle{sender: sender, cfg: g.cfg}, nil
}

type smtpHandle struct {
	sender gomail.SendCloser
	cfg    config.SMTPConfig
}

// Send transmits msg over the shared connection. SMTP returns no provider
// message id, so one is minted, stamped on the message, and reported back.
func (h *smtpHandle) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), h.cfg.Domain())

	m := gomail.NewMessage()
	m.SetHeader("From", h.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	} else {
		m.SetBody("text/html", msg.HTMLBody)
	}
	if msg.AttachmentPath != "" {
		if _, err := os.Stat(msg.AttachmentPath); err == nil {
			m.Attach(msg.AttachmentPath)
		}
	}

	if err := gomail.Send(h.sender, m); err != nil {
		return "", fmt.Errorf("failed to send to %s: %w", msg.To, err)
	}
	return messageID, nil
}

func (h *smtpHandle) Close() error {
	return h.sender.Close()
}
