package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(sendErr error) (*Mailer, *captured) {
	m := New(Config{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "alerts@example.com",
		FromName: "StrataWatch",
	}, zap.NewNop())
	c := &captured{}
	m.send = func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
		return sendErr
	}
	return m, c
}

func TestNotify_ComposesMessage(t *testing.T) {
	m, c := newTestMailer(nil)

	body := "Dear User,\n\nYour Wi-Fi device (aa:bb) has been disconnected."
	if err := m.Notify(context.Background(), "alice@example.com", "Wi-Fi Device Disconnected", body); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if c.addr != "smtp.example.com:587" || c.from != "alerts@example.com" {
		t.Errorf("addr/from = %s %s", c.addr, c.from)
	}
	if len(c.to) != 1 || c.to[0] != "alice@example.com" {
		t.Errorf("to = %v", c.to)
	}
	for _, want := range []string{
		"From: StrataWatch <alerts@example.com>\r\n",
		"Subject: Wi-Fi Device Disconnected\r\n",
		"Message-ID: <",
		"@example.com>\r\n",
		"multipart/alternative",
		"Dear User,\r\n\r\nYour Wi-Fi device (aa:bb)",
		"text/html",
	} {
		if !strings.Contains(c.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestNotify_EmptyTarget(t *testing.T) {
	m, _ := newTestMailer(nil)
	if err := m.Notify(context.Background(), "", "s", "b"); err == nil {
		t.Error("Notify() with empty target should fail")
	}
}

func TestSend_WrapsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	m, _ := newTestMailer(boom)

	err := m.Send(context.Background(), Email{To: "a@example.com", Subject: "s", TextBody: "b"})
	if !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want wrapped %v", err, boom)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	m := New(Config{}, zap.NewNop())
	if m.Enabled() {
		t.Error("mailer without host reports enabled")
	}
	err := m.Send(context.Background(), Email{To: "a@example.com"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Send() error = %v, want ErrNotConfigured", err)
	}
}

func TestHTMLFromText_Escapes(t *testing.T) {
	out := HTMLFromText("Alert", "line one\nline <two>\n\nsecond para")
	if !strings.Contains(out, "line one<br>line &lt;two&gt;") {
		t.Errorf("unexpected html: %s", out)
	}
	if strings.Count(out, "<p>") != 2 {
		t.Errorf("want 2 paragraphs, got: %s", out)
	}
}
