package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/queue"
)

func TestLoginMessage(t *testing.T) {
	msg := LoginMessage("S1", "Alice", "2025-08-21 09:00:00")
	assert.Equal(t, "Alice (S1) logged in at 2025-08-21 09:00:00", msg)
}

func TestMailerConfigured(t *testing.T) {
	assert.False(t, NewMailer("", "", "", "", "").Configured())
	assert.False(t, NewMailer("smtp.test", "587", "from@test", "", "to@test").Configured())
	assert.True(t, NewMailer("smtp.test", "587", "from@test", "secret", "to@test").Configured())
}

func TestMailerUnconfiguredReturnsNotificationError(t *testing.T) {
	m := NewMailer("", "", "", "", "")
	err := m.NotifyLogin(context.Background(), "S1", "Alice")
	require.Error(t, err)
	var ne *NotificationError
	assert.ErrorAs(t, err, &ne)
	assert.Equal(t, "S1", ne.StudentID)
}

func TestQueueNotifierPublishesJob(t *testing.T) {
	q := queue.NewInMemory(4)
	n := NewQueueNotifier(q)

	require.NoError(t, n.NotifyLogin(context.Background(), "S1", "Alice"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	msg := <-messages
	assert.Equal(t, MessageTypeLogin, msg.Type)

	var job LoginJob
	require.NoError(t, json.Unmarshal(msg.Body, &job))
	assert.Equal(t, "S1", job.StudentID)
	assert.Equal(t, "Alice", job.Name)
}

type stubSender struct {
	err   error
	calls int
}

func (s *stubSender) NotifyLogin(ctx context.Context, studentID, name string) error {
	s.calls++
	return s.err
}

type stubAudit struct {
	rows []string
}

func (s *stubAudit) AppendNotification(ctx context.Context, studentID, message string) error {
	s.rows = append(s.rows, studentID+": "+message)
	return nil
}

func TestAuditedRecordsAfterDelivery(t *testing.T) {
	sender := &stubSender{}
	audit := &stubAudit{}
	a := NewAudited(sender, audit)

	require.NoError(t, a.NotifyLogin(context.Background(), "S1", "Alice"))
	require.Len(t, audit.rows, 1)
	assert.Contains(t, audit.rows[0], "Alice (S1) logged in")
}

func TestAuditedSkipsAuditOnFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp down")}
	audit := &stubAudit{}
	a := NewAudited(sender, audit)

	err := a.NotifyLogin(context.Background(), "S1", "Alice")
	require.Error(t, err)
	assert.Empty(t, audit.rows, "no audit row without a delivery")
}
