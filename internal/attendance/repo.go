package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campusattend/internal/store"
	"campusattend/internal/timeutil"
)

// Attendance statuses. A student's event history strictly alternates
// between the two, starting with login.
const (
	StatusLogin  = "login"
	StatusLogout = "logout"
)

// Student is a registered student. Rows are replaced wholesale on
// re-registration, never partially updated.
type Student struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Course    string `json:"course"`
	CreatedAt string `json:"created_at"`
}

// Event is one append-only attendance record.
type Event struct {
	ID        int64  `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Notification is one audit row for a sent login email.
type Notification struct {
	ID        int64  `json:"id"`
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
	SentAt    string `json:"sent_at"`
}

// Repository persists students, attendance events and the notification log.
// Every call commits independently; there are no cross-call transactions.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// UpsertStudent inserts or fully replaces the row keyed by studentID.
func (r *Repository) UpsertStudent(ctx context.Context, studentID, name, email, course string) error {
	if studentID == "" {
		return storageErr("upsert student", studentID, errors.New("student id required"))
	}
	var query string
	if r.db.Driver == "pgx" {
		query = `
			INSERT INTO students (student_id, name, email, course, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (student_id) DO UPDATE SET
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				course = EXCLUDED.course,
				created_at = EXCLUDED.created_at`
	} else {
		query = `
			INSERT OR REPLACE INTO students (student_id, name, email, course, created_at)
			VALUES (?, ?, ?, ?, ?)`
	}
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(query),
		studentID, name, email, course, timeutil.Now())
	return storageErr("upsert student", studentID, err)
}

// GetStudent returns a single student, or nil when absent.
func (r *Repository) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT student_id, name, email, course, created_at
		FROM students WHERE student_id = ?`), studentID)
	var st Student
	if err := row.Scan(&st.StudentID, &st.Name, &st.Email, &st.Course, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get student", studentID, err)
	}
	return &st, nil
}

// ListStudents returns all students ordered by student id.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT student_id, name, email, course, created_at
		FROM students ORDER BY student_id`)
	if err != nil {
		return nil, storageErr("list students", "", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.StudentID, &st.Name, &st.Email, &st.Course, &st.CreatedAt); err != nil {
			return nil, storageErr("list students", "", err)
		}
		students = append(students, st)
	}
	return students, storageErr("list students", "", rows.Err())
}

// StudentDirectory returns a studentID -> name mapping, used to resolve
// display names when only an identifier is known.
func (r *Repository) StudentDirectory(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT student_id, name FROM students`)
	if err != nil {
		return nil, storageErr("student directory", "", err)
	}
	defer rows.Close()

	dir := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, storageErr("student directory", "", err)
		}
		dir[id] = name
	}
	return dir, storageErr("student directory", "", rows.Err())
}

// AppendAttendance inserts one append-only event stamped with the current time.
func (r *Repository) AppendAttendance(ctx context.Context, studentID, name, status string) (Event, error) {
	evt := Event{
		StudentID: studentID,
		Name:      name,
		Status:    status,
		Timestamp: timeutil.Now(),
	}
	if r.db.Driver == "pgx" {
		row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
			INSERT INTO attendance (student_id, name, status, timestamp)
			VALUES (?, ?, ?, ?) RETURNING id`),
			evt.StudentID, evt.Name, evt.Status, evt.Timestamp)
		if err := row.Scan(&evt.ID); err != nil {
			return Event{}, storageErr("append attendance", studentID, err)
		}
		return evt, nil
	}
	res, err := r.db.Client.ExecContext(ctx, `
		INSERT INTO attendance (student_id, name, status, timestamp)
		VALUES (?, ?, ?, ?)`,
		evt.StudentID, evt.Name, evt.Status, evt.Timestamp)
	if err != nil {
		return Event{}, storageErr("append attendance", studentID, err)
	}
	evt.ID, _ = res.LastInsertId()
	return evt, nil
}

// LastStatus returns the most recent event status for a student, or ""
// when the student has no events yet.
func (r *Repository) LastStatus(ctx context.Context, studentID string) (string, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT status FROM attendance
		WHERE student_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`), studentID)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", storageErr("last status", studentID, err)
	}
	return status, nil
}

// ListAttendance returns all events, most recent first.
func (r *Repository) ListAttendance(ctx context.Context) ([]Event, error) {
	return r.queryEvents(ctx, `
		SELECT id, student_id, name, status, timestamp
		FROM attendance ORDER BY timestamp DESC, id DESC`)
}

// ListAttendanceBetween returns events with from <= timestamp <= to,
// ascending. Bounds use the timeutil layout, which sorts lexically.
func (r *Repository) ListAttendanceBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	return r.queryEvents(ctx, r.db.Rebind(`
		SELECT id, student_id, name, status, timestamp
		FROM attendance
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC`),
		from.Format(timeutil.Layout), to.Format(timeutil.Layout))
}

// ListStudentAttendance returns one student's events, oldest first, for
// session pairing.
func (r *Repository) ListStudentAttendance(ctx context.Context, studentID string) ([]Event, error) {
	return r.queryEvents(ctx, r.db.Rebind(`
		SELECT id, student_id, name, status, timestamp
		FROM attendance
		WHERE student_id = ?
		ORDER BY timestamp ASC, id ASC`), studentID)
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.Client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list attendance", "", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.StudentID, &evt.Name, &evt.Status, &evt.Timestamp); err != nil {
			return nil, storageErr("list attendance", "", err)
		}
		events = append(events, evt)
	}
	return events, storageErr("list attendance", "", rows.Err())
}

// AppendNotification writes a best-effort audit row. Callers treat failure
// as advisory; it never blocks attendance logging.
func (r *Repository) AppendNotification(ctx context.Context, studentID, message string) error {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO notifications (student_id, message, sent_at)
		VALUES (?, ?, ?)`),
		studentID, message, timeutil.Now())
	return storageErr("append notification", studentID, err)
}

// ListNotifications returns the audit log for one student, newest first.
func (r *Repository) ListNotifications(ctx context.Context, studentID string) ([]Notification, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT id, student_id, message, sent_at
		FROM notifications
		WHERE student_id = ?
		ORDER BY sent_at DESC, id DESC`), studentID)
	if err != nil {
		return nil, storageErr("list notifications", studentID, err)
	}
	defer rows.Close()

	var notes []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.StudentID, &n.Message, &n.SentAt); err != nil {
			return nil, storageErr("list notifications", studentID, err)
		}
		notes = append(notes, n)
	}
	return notes, storageErr("list notifications", studentID, rows.Err())
}

// SaveRefreshToken stores an operator refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO refresh_tokens (token, subject, expires_at)
		VALUES (?, ?, ?)`),
		token, subject, expiresAt.Format(timeutil.Layout))
	return storageErr("save refresh token", "", err)
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.Client.ExecContext(ctx,
		r.db.Rebind(`UPDATE refresh_tokens SET revoked = TRUE WHERE token = ?`), token)
	return storageErr("revoke refresh token", "", err)
}
