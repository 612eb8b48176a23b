package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// emailTemplate renders the HTML notification body. Login mail confirms
// access; alert mail leads with the magnitude.
var emailTemplate = template.Must(template.New("email").Parse(`<div style="background:#0f172a; padding:30px; font-family:Arial;">
  <div style="background:#1e293b; padding:40px; border-radius:15px; border:1px solid {{.Color}}; color:white;">
    <h2 style="color:{{.Color}}">{{.Heading}}</h2>
    {{if .IsAlert}}<h1 style="color:{{.Color}}">{{printf "%.1f" .Magnitude}} M</h1><p>{{.Location}}</p>
    {{else}}<p>User: {{.User}}</p><p>Time: {{.Timestamp}}</p>{{end}}
    <br>
    <a href="{{.DashboardURL}}" style="background:{{.Color}}; color:#000; padding:12px 25px; text-decoration:none; border-radius:30px; font-weight:bold;">OPEN DASHBOARD</a>
  </div>
</div>`))

type emailData struct {
	Color        string
	Heading      string
	IsAlert      bool
	Magnitude    float64
	Location     string
	User         string
	Timestamp    string
	DashboardURL string
}

// SendMailFunc matches smtp.SendMail, injectable for tests.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel delivers notifications over SMTP.
type EmailChannel struct {
	host         string
	port         int
	user         string
	pass         string
	from         string
	dashboardURL string
	send         SendMailFunc
}

// NewEmailChannel creates an SMTP channel. sendMail may be nil, in which
// case smtp.SendMail is used.
func NewEmailChannel(host string, port int, user, pass, from, dashboardURL string, sendMail SendMailFunc) *EmailChannel {
	if sendMail == nil {
		sendMail = smtp.SendMail
	}
	return &EmailChannel{
		host:         host,
		port:         port,
		user:         user,
		pass:         pass,
		from:         from,
		dashboardURL: dashboardURL,
		send:         sendMail,
	}
}

func (e *EmailChannel) Name() string { return "email" }

// Send renders and delivers the message. Payloads without a plausible
// recipient address are dropped with an error for the dispatcher's log.
// Delivery is bounded by ctx; smtp.SendMail itself has no deadline, so a
// stalled server otherwise holds the goroutine until TCP gives up.
func (e *EmailChannel) Send(ctx context.Context, p Payload) error {
	if p.To == "" || !strings.Contains(p.To, "@") {
		return errors.New("no recipient address")
	}

	subject, body, err := e.render(p)
	if err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: SeismicGuard <%s>\r\n", e.from)
	fmt.Fprintf(&msg, "To: %s\r\n", p.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.pass, e.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- e.send(addr, auth, e.from, []string{p.To}, msg.Bytes())
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp delivery to %s: %w", p.To, ctx.Err())
	}
}

func (e *EmailChannel) render(p Payload) (subject, body string, err error) {
	data := emailData{DashboardURL: e.dashboardURL}

	switch p.Kind {
	case KindAlert:
		subject = fmt.Sprintf("ALERT: %.1f M seismic event", p.Magnitude)
		data.Color = "#ef4444"
		data.Heading = "Seismic Warning"
		data.IsAlert = true
		data.Magnitude = p.Magnitude
		data.Location = p.Location
	case KindLogin:
		subject = "Login verified"
		data.Color = "#38bdf8"
		data.Heading = "Access Granted"
		data.User = p.User
		data.Timestamp = p.At.Format("2006-01-02 15:04")
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", p.Kind)
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return subject, buf.String(), nil
}
