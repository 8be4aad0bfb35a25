package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string // address used in the envelope and From header
	FromName string
}

const defaultDialTimeout = 10 * time.Second

type SMTPSender struct {
	cfg SMTPConfig
	tls *tls.Config
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST not set")
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("SMTP_PORT not set")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP_FROM or SMTP_USER must be set")
	}
	return &SMTPSender{
		cfg: cfg,
		tls: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}, nil
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.cfg.Host, s.cfg.Port)
}

func (s *SMTPSender) auth() smtp.Auth {
	if s.cfg.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
}

// session is one SMTP connection bound to a context: the context deadline is
// the connection deadline, and cancelling the context unblocks any pending I/O.
type session struct {
	*smtp.Client
	conn net.Conn
	stop func() bool
}

func (ss *session) close() {
	ss.stop()
	_ = ss.Client.Close()
	_ = ss.conn.Close()
}

// open dials the server, upgrades to TLS when offered and authenticates.
func (s *SMTPSender) open(ctx context.Context) (*session, error) {
	d := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return nil, fmt.Errorf("smtp dial failed: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		stop()
		conn.Close()
		return nil, fmt.Errorf("smtp handshake failed: %w", err)
	}
	ss := &session{Client: c, conn: conn, stop: stop}

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(s.tls.Clone()); err != nil {
			ss.close()
			return nil, fmt.Errorf("smtp starttls failed: %w", err)
		}
	}
	if a := s.auth(); a != nil {
		if err := c.Auth(a); err != nil {
			ss.close()
			return nil, fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	return ss, nil
}

// Verify dials the server and authenticates without sending anything.
func (s *SMTPSender) Verify(ctx context.Context) error {
	ss, err := s.open(ctx)
	if err != nil {
		return withContext(ctx, err)
	}
	defer ss.close()
	return withContext(ctx, ss.Quit())
}

func (s *SMTPSender) SendEmail(ctx context.Context, email Email) (SendResult, error) {
	if email.To == "" {
		return SendResult{}, errors.New("smtp send failed: empty recipient")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.Host)
	msg := s.buildMessage(email, messageID)

	ss, err := s.open(ctx)
	if err != nil {
		return SendResult{}, withContext(ctx, err)
	}
	defer ss.close()

	if err := s.deliver(ss, email.To, msg); err != nil {
		return SendResult{}, withContext(ctx, fmt.Errorf("smtp send failed: %w", err))
	}
	// The message is accepted once DATA is acknowledged; a failed QUIT is ignored.
	_ = ss.Quit()

	return SendResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

func (s *SMTPSender) deliver(ss *session, to string, msg []byte) error {
	if err := ss.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := ss.Rcpt(to); err != nil {
		return err
	}
	w, err := ss.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// withContext reports the context error when it is what ended the exchange.
func withContext(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	ctxErr := ctx.Err()
	if ctxErr == nil {
		// The connection deadline can fire just before the context timer does.
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			ctxErr = context.DeadlineExceeded
		}
	}
	if ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("smtp send aborted: %w (%v)", ctxErr, err)
	}
	return err
}

func (s *SMTPSender) buildMessage(email Email, messageID string) []byte {
	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", s.cfg.FromName), s.cfg.From)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + email.To + "\r\n")
	if email.ReplyTo != "" {
		b.WriteString("Reply-To: " + email.ReplyTo + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", email.Subject) + "\r\n")
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.HTML)
	return []byte(b.String())
}
