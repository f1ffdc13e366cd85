package notify

import (
	"context"
	"encoding/json"

	"campusattend/internal/queue"
)

// MessageTypeLogin is the queue message type for login notifications.
const MessageTypeLogin = "login-notify"

// LoginJob is the payload the API publishes and the worker consumes.
type LoginJob struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

// QueueNotifier hands login notifications to a worker via the queue instead
// of sending inline. Delivery and the audit row happen in cmd/worker.
type QueueNotifier struct {
	q queue.Queue
}

// NewQueueNotifier wraps a queue backend.
func NewQueueNotifier(q queue.Queue) *QueueNotifier {
	return &QueueNotifier{q: q}
}

// NotifyLogin publishes a login job. A publish failure is a
// *NotificationError like any other transport failure.
func (n *QueueNotifier) NotifyLogin(ctx context.Context, studentID, name string) error {
	job := LoginJob{StudentID: studentID, Name: name}
	body, err := json.Marshal(job)
	if err != nil {
		return &NotificationError{StudentID: studentID, Err: err}
	}
	if err := n.q.Publish(ctx, queue.Message{Type: MessageTypeLogin, Body: body}); err != nil {
		return &NotificationError{StudentID: studentID, Err: err}
	}
	return nil
}
