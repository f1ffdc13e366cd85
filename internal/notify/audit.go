package notify

import (
	"context"
	"log"

	"campusattend/internal/timeutil"
)

// AuditLog is the slice of the attendance store the notifier writes its
// best-effort audit rows to.
type AuditLog interface {
	AppendNotification(ctx context.Context, studentID, message string) error
}

// Sender is anything that can deliver a login notification.
type Sender interface {
	NotifyLogin(ctx context.Context, studentID, name string) error
}

// Audited wraps a Sender and records a notification audit row after each
// successful delivery. Audit failures are logged and swallowed; they never
// block attendance logging.
type Audited struct {
	inner Sender
	audit AuditLog
}

// NewAudited wraps a sender with audit logging.
func NewAudited(inner Sender, audit AuditLog) *Audited {
	return &Audited{inner: inner, audit: audit}
}

// NotifyLogin delivers via the inner sender, then appends the audit row.
func (a *Audited) NotifyLogin(ctx context.Context, studentID, name string) error {
	if err := a.inner.NotifyLogin(ctx, studentID, name); err != nil {
		return err
	}
	msg := LoginMessage(studentID, name, timeutil.Now())
	if err := a.audit.AppendNotification(ctx, studentID, msg); err != nil {
		log.Printf("notification audit row for %s failed: %v", studentID, err)
	}
	return nil
}
