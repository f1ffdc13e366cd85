package attendance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/store"
	"campusattend/internal/timeutil"
)

func newTestRepo(t *testing.T) (*Repository, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), db
}

func TestUpsertStudentIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.UpsertStudent(ctx, "S1", "Alice", "alice@uni.test", "CS"))
	require.NoError(t, repo.UpsertStudent(ctx, "S1", "Alice B", "aliceb@uni.test", "CS"))

	students, err := repo.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1, "upsert must replace, not duplicate")
	assert.Equal(t, "Alice B", students[0].Name)
	assert.Equal(t, "aliceb@uni.test", students[0].Email)
}

func TestUpsertStudentRequiresID(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.UpsertStudent(context.Background(), "", "Nobody", "", "")
	require.Error(t, err)
	var se *StorageError
	assert.ErrorAs(t, err, &se)
}

func TestAppendAttendanceIsMostRecent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.UpsertStudent(ctx, "S1", "Alice", "", ""))

	_, err := repo.AppendAttendance(ctx, "S1", "Alice", StatusLogin)
	require.NoError(t, err)
	evt, err := repo.AppendAttendance(ctx, "S1", "Alice", StatusLogout)
	require.NoError(t, err)

	events, err := repo.ListAttendance(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, evt.ID, events[0].ID, "newest event must come first")
	assert.Equal(t, StatusLogout, events[0].Status)
}

func TestLastStatusEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)
	status, err := repo.LastStatus(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "", status)
}

func seedEvent(t *testing.T, db *store.DB, studentID, name, status, ts string) {
	t.Helper()
	_, err := db.Client.Exec(db.Rebind(`
		INSERT INTO attendance (student_id, name, status, timestamp)
		VALUES (?, ?, ?, ?)`), studentID, name, status, ts)
	require.NoError(t, err)
}

func TestListAttendanceBetween(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)
	require.NoError(t, repo.UpsertStudent(ctx, "S1", "Alice", "", ""))

	seedEvent(t, db, "S1", "Alice", StatusLogin, "2025-08-20 08:00:00")
	seedEvent(t, db, "S1", "Alice", StatusLogout, "2025-08-20 12:00:00")
	seedEvent(t, db, "S1", "Alice", StatusLogin, "2025-08-21 09:00:00")
	seedEvent(t, db, "S1", "Alice", StatusLogout, "2025-08-22 17:00:00")

	from, err := timeutil.Parse("2025-08-20 12:00:00")
	require.NoError(t, err)
	to, err := timeutil.Parse("2025-08-21 23:59:59")
	require.NoError(t, err)

	events, err := repo.ListAttendanceBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, events, 2, "range is inclusive on both bounds")
	assert.Equal(t, "2025-08-20 12:00:00", events[0].Timestamp)
	assert.Equal(t, "2025-08-21 09:00:00", events[1].Timestamp)
}

func TestNotificationsAuditLog(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.UpsertStudent(ctx, "S1", "Alice", "", ""))

	require.NoError(t, repo.AppendNotification(ctx, "S1", "Alice (S1) logged in at 2025-08-21 09:00:00"))
	require.NoError(t, repo.AppendNotification(ctx, "S1", "Alice (S1) logged in at 2025-08-22 09:00:00"))

	notes, err := repo.ListNotifications(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0].Message, "logged in")
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)

	require.NoError(t, repo.SaveRefreshToken(ctx, "operator", "tok-1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.RevokeRefreshToken(ctx, "tok-1"))

	var revoked bool
	err := db.Client.QueryRow(db.Rebind(`SELECT revoked FROM refresh_tokens WHERE token = ?`), "tok-1").Scan(&revoked)
	require.NoError(t, err)
	assert.True(t, revoked)
}
