// Package delivery hands one-time codes to the user over an out-of-band
// channel.
package delivery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/wneessen/go-mail"
)

// Sender delivers a code to destination. Implementations own their timeouts.
type Sender interface {
	SendCode(ctx context.Context, destination, code string) error
}

// DefaultSMTPTimeout bounds one delivery, dial to QUIT.
const DefaultSMTPTimeout = 15 * time.Second

// SMTPSender mails codes through an SMTP relay, upgrading to TLS when the
// relay offers STARTTLS.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender builds a sender for host:port. Authentication is skipped
// when user is empty. A zero timeout means DefaultSMTPTimeout.
func NewSMTPSender(host string, port int, user, password, from string, timeout time.Duration) (*SMTPSender, error) {
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(dialWithDeadline),
	}
	if user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(password),
		)
	}
	c, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: c, from: from}, nil
}

// dialWithDeadline carries the dial context's deadline onto the connection,
// so a relay that accepts and then stalls cannot hold the session open.
func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (s *SMTPSender) SendCode(ctx context.Context, destination, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(destination); err != nil {
		return fmt.Errorf("invalid destination %q: %w", destination, err)
	}
	msg.Subject("Your passm verification code")
	msg.SetBodyString(mail.TypeTextPlain, "Your verification code is "+code+". It expires in a few minutes.")

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender writes codes to the log. It is meant for local development only.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log.With("module", "delivery")}
}

func (s *LogSender) SendCode(ctx context.Context, destination, code string) error {
	s.log.Info(ctx, "one-time code", "destination", destination, "code", code)
	return nil
}
