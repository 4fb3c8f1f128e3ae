package alert

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/config"
	"github.com/ayusman/riskcam/internal/render"
)

// fakeSMTP accepts one session and records the DATA payload.
type fakeSMTP struct {
	ln    net.Listener
	mu    sync.Mutex
	from  string
	rcpts []string
	data  string
	auth  bool
	done  chan struct{}
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	write := func(line string) { conn.Write([]byte(line + "\r\n")) }

	write("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)

		switch {
		case strings.HasPrefix(upper, "EHLO"):
			write("250-localhost")
			write("250 AUTH PLAIN")
		case strings.HasPrefix(upper, "AUTH"):
			s.mu.Lock()
			s.auth = true
			s.mu.Unlock()
			write("235 ok")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			s.mu.Unlock()
			write("250 ok")
		case strings.HasPrefix(upper, "RCPT TO:"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			s.mu.Unlock()
			write("250 ok")
		case upper == "DATA":
			write("354 go ahead")
			var sb strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			s.mu.Lock()
			s.data = sb.String()
			s.mu.Unlock()
			write("250 queued")
		case upper == "QUIT":
			write("221 bye")
			return
		default:
			write("250 ok")
		}
	}
}

func smtpConfig(port int) config.SMTPConfig {
	useTLS := true
	return config.SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Username: "watcher@example.com",
		Password: "secret",
		To:       "oncall@example.com, backup@example.com",
		UseTLS:   &useTLS,
	}
}

func TestNewMailer_Disabled(t *testing.T) {
	if m := NewMailer(config.SMTPConfig{Host: "smtp.example.com"}, 0.5); m != nil {
		t.Error("NewMailer() with incomplete config should return nil")
	}
}

func TestMailer_Exceeds(t *testing.T) {
	m := NewMailer(smtpConfig(25), 0.7)

	tests := []struct {
		score      float64
		indicators []string
		want       bool
	}{
		{score: 0.7, want: true},
		{score: 0.6, want: false},
		{score: 0.1, indicators: []string{"pills"}, want: true},
	}
	for _, tt := range tests {
		if got := m.Exceeds(tt.score, tt.indicators); got != tt.want {
			t.Errorf("Exceeds(%v, %v) = %v, want %v", tt.score, tt.indicators, got, tt.want)
		}
	}
}

func TestBody(t *testing.T) {
	got := Body(render.Alert{Source: "monitoring", Score: 0.62, Indicators: []string{"rope", "knife"}})
	want := "A new suicide-risk event was detected.\nSource: monitoring\nScore: 0.620\nIndicators: rope, knife"
	if got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}
}

func TestMailer_Subject(t *testing.T) {
	cfg := smtpConfig(25)
	m := NewMailer(cfg, 0)
	if got := m.Subject("monitoring"); got != "Suicide risk detected (monitoring)" {
		t.Errorf("Subject() = %q", got)
	}

	cfg.Subject = "ALERT"
	m = NewMailer(cfg, 0)
	if got := m.Subject("monitoring"); got != "ALERT" {
		t.Errorf("Subject() = %q, want configured subject", got)
	}
}

func TestMailer_Send(t *testing.T) {
	srv := newFakeSMTP(t)
	m := NewMailer(smtpConfig(srv.port()), 0.5)

	err := m.Send(render.Alert{
		Source:     "monitoring",
		Score:      0.9,
		Indicators: []string{"rope"},
		Frame:      &capture.Frame{Data: []byte("jpeg-bytes")},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case <-srv.done:
	case <-time.After(2 * time.Second):
		t.Fatal("server session did not finish")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if !srv.auth {
		t.Error("client did not authenticate")
	}
	if srv.from != "watcher@example.com" {
		t.Errorf("MAIL FROM = %q, want the username", srv.from)
	}
	if len(srv.rcpts) != 2 {
		t.Errorf("RCPT = %v, want 2 recipients", srv.rcpts)
	}
	for _, want := range []string{
		"Subject: Suicide risk detected (monitoring)",
		"Score: 0.900",
		"Indicators: rope",
		`filename="frame.jpg"`,
		"anBlZy1ieXRlcw==",
	} {
		if !strings.Contains(srv.data, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestMailer_SendDialFailure(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewMailer(smtpConfig(port), 0.5)
	if err := m.Send(render.Alert{Score: 0.9}); err == nil {
		t.Error("Send() to a closed port should fail")
	}
}

func TestMailer_SendSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// Accept and never send a greeting.
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			held <- conn
		}
	}()
	defer func() {
		select {
		case conn := <-held:
			conn.Close()
		default:
		}
	}()

	m := NewMailer(smtpConfig(ln.Addr().(*net.TCPAddr).Port), 0.5)
	m.timeout = 100 * time.Millisecond

	errCh := make(chan error, 1)
	go func() { errCh <- m.Send(render.Alert{Score: 0.9}) }()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Send() to a silent server should fail")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Send() did not return within its deadline")
	}
}
