package sender

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSender_RequiresHostAndPort(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Port: "587", Username: "apikey"})
	assert.Error(t, err)

	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "apikey"})
	assert.Error(t, err)

	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: "587"})
	assert.Error(t, err, "no from address and no username")
}

func TestBuildMessage_Headers(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     "587",
		Username: "shop@example.com",
		FromName: "Boutique",
	})
	require.NoError(t, err)

	msg := string(s.buildMessage(Email{
		To:      "client@example.com",
		Subject: "Confirmation de votre commande",
		HTML:    "<p>merci</p>",
		ReplyTo: "shop@example.com",
	}, "<id@smtp.example.com>"))

	head, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, head, "From: Boutique <shop@example.com>")
	assert.Contains(t, head, "To: client@example.com")
	assert.Contains(t, head, "Reply-To: shop@example.com")
	assert.Contains(t, head, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, head, "Message-ID: <id@smtp.example.com>")
	assert.Equal(t, "<p>merci</p>", body)
}

func TestSendEmail_EmptyRecipient(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: "587", Username: "u"})
	require.NoError(t, err)

	_, err = s.SendEmail(context.Background(), Email{Subject: "x"})
	assert.Error(t, err)
}

func newTestSender(t *testing.T, port string) *SMTPSender {
	t.Helper()
	s, err := NewSMTPSender(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Username: "apikey",
		Password: "secret",
		From:     "shop@example.com",
	})
	require.NoError(t, err)
	return s
}

func TestVerify_UpgradesToTLS(t *testing.T) {
	srv := newFakeSMTP(t)
	s := newTestSender(t, srv.port())
	s.tls.RootCAs = srv.roots

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Verify(ctx))

	tlsUsed, authed, _ := srv.snapshot()
	assert.True(t, tlsUsed)
	assert.True(t, authed)
}

func TestVerify_RejectsUntrustedCertificate(t *testing.T) {
	srv := newFakeSMTP(t)
	s := newTestSender(t, srv.port())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Verify(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starttls")
	assert.NotContains(t, err.Error(), "ServerName")
}

func TestSendEmail_DeliversOverTLS(t *testing.T) {
	srv := newFakeSMTP(t)
	s := newTestSender(t, srv.port())
	s.tls.RootCAs = srv.roots

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.SendEmail(ctx, Email{To: "client@example.com", Subject: "Commande", HTML: "<p>merci</p>"})
	require.NoError(t, err)
	assert.Contains(t, res.MessageID, "@127.0.0.1>")

	tlsUsed, _, messages := srv.snapshot()
	assert.True(t, tlsUsed)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "To: client@example.com")
	assert.Contains(t, messages[0], "<p>merci</p>")
}

func TestSendEmail_StalledServerReleasesConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	released := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never greet; wait for the client to hang up.
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				close(released)
				return
			}
		}
	}()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	s := newTestSender(t, port)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = s.SendEmail(ctx, Email{To: "client@example.com", Subject: "x", HTML: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("connection to the stalled server was not closed")
	}
}
