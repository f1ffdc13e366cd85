package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"campusattend/internal/timeutil"
)

// NotificationError reports a failed delivery. It is never fatal to the
// caller; the orchestrator logs it and moves on.
type NotificationError struct {
	StudentID string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification for %s failed: %v", e.StudentID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// LoginMessage is the fixed-template body recorded in the notification log
// and mailed to the configured recipient.
func LoginMessage(studentID, name, timestamp string) string {
	return fmt.Sprintf("%s (%s) logged in at %s", name, studentID, timestamp)
}

// Mailer sends notification emails over SMTP with STARTTLS.
type Mailer struct {
	Host     string
	Port     string
	From     string
	Password string
	To       string
}

// NewMailer creates a mailer for a single configured recipient.
func NewMailer(host, port, from, password, to string) *Mailer {
	return &Mailer{Host: host, Port: port, From: from, Password: password, To: to}
}

// Configured reports whether the mailer has everything it needs to send.
func (m *Mailer) Configured() bool {
	return m.Host != "" && m.Port != "" && m.From != "" && m.Password != "" && m.To != ""
}

// NotifyLogin sends the fixed login-notification email.
func (m *Mailer) NotifyLogin(ctx context.Context, studentID, name string) error {
	ts := timeutil.Now()
	subject := fmt.Sprintf("Login Notification - %s", name)
	body := fmt.Sprintf(`<h3>Attendance Login</h3>
<p><b>%s</b> (ID: %s) logged in at <b>%s</b>.</p>
<br>
<p><i>Campus Attendance System</i></p>`, name, studentID, ts)

	if err := m.send(ctx, subject, body); err != nil {
		return &NotificationError{StudentID: studentID, Err: err}
	}
	log.Printf("login email sent for %s (%s)", name, studentID)
	return nil
}

// SendSummary emails an attendance summary for a student.
func (m *Mailer) SendSummary(ctx context.Context, studentID, name string, daysPresent, sessions int, totalTime string) error {
	subject := fmt.Sprintf("Attendance Summary for %s", name)
	body := fmt.Sprintf(`<h3>Hello %s,</h3>
<p>Here is your attendance summary:</p>
<ul>
<li>Days Present: %d</li>
<li>Completed Sessions: %d</li>
<li>Total Time on Campus: <b>%s</b></li>
</ul>
<p>Best Regards,<br>Campus Attendance System</p>`, name, daysPresent, sessions, totalTime)

	if err := m.send(ctx, subject, body); err != nil {
		return &NotificationError{StudentID: studentID, Err: err}
	}
	return nil
}

func (m *Mailer) send(ctx context.Context, subject, htmlBody string) error {
	if !m.Configured() {
		return fmt.Errorf("smtp not configured (host/port/from/password/recipient required)")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + m.To,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		htmlBody,
	}, "\r\n")

	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	addr := m.Host + ":" + m.Port

	// smtp.SendMail negotiates STARTTLS when the server offers it. Port 465
	// deployments need an implicit-TLS dial instead.
	if m.Port == "465" {
		return m.sendImplicitTLS(auth, addr, []byte(msg))
	}
	if err := smtp.SendMail(addr, auth, m.From, []string{m.To}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *Mailer) sendImplicitTLS(auth smtp.Auth, addr string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(m.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
