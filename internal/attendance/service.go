package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"campusattend/internal/faceclient"
	"campusattend/internal/timeutil"
)

var (
	recognitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_recognitions_total",
		Help: "Recognition attempts by outcome.",
	}, []string{"outcome"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_notifications_total",
		Help: "Login notifications by result.",
	}, []string{"result"})
)

// Matcher is the slice of the face service the orchestrator needs.
type Matcher interface {
	Search(ctx context.Context, photo []byte, filename string) (*faceclient.SearchResult, error)
	Enroll(ctx context.Context, label string, photo []byte, filename string) (*faceclient.EnrollResult, error)
}

// Notifier delivers login notifications. Failures are advisory and never
// invalidate a recognition result.
type Notifier interface {
	NotifyLogin(ctx context.Context, studentID, name string) error
}

// Result is what the dashboard displays after a recognition.
type Result struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Distance  float64 `json:"distance"`
	Timestamp string  `json:"timestamp"`
	Late      bool    `json:"late"`
}

// Service coordinates recognition, status derivation and persistence.
type Service struct {
	repo     *Repository
	matcher  Matcher
	notifier Notifier

	lateHour     int
	matchTimeout time.Duration
	storeTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a service. notifier may be nil when notifications are
// not configured.
func NewService(repo *Repository, matcher Matcher, notifier Notifier, lateHour int, matchTimeout, storeTimeout time.Duration) *Service {
	if matchTimeout <= 0 {
		matchTimeout = 30 * time.Second
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	if lateHour <= 0 {
		lateHour = timeutil.DefaultLateHour
	}
	return &Service{
		repo:         repo,
		matcher:      matcher,
		notifier:     notifier,
		lateHour:     lateHour,
		matchTimeout: matchTimeout,
		storeTimeout: storeTimeout,
		locks:        make(map[string]*sync.Mutex),
	}
}

// IdentityLabel builds the matcher gallery label for a student.
func IdentityLabel(studentID, name string) string {
	return studentID + "_" + name
}

// ParseIdentityLabel recovers (studentID, name) from a matcher identity
// label or reference path. Returns ErrMalformedIdentity when the label does
// not follow the studentID_name convention.
func ParseIdentityLabel(label string) (string, string, error) {
	base := path.Base(strings.ReplaceAll(label, "\\", "/"))
	if ext := path.Ext(base); ext != "" && len(ext) <= 5 {
		base = strings.TrimSuffix(base, ext)
	}
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedIdentity, label)
	}
	return parts[0], parts[1], nil
}

// DetermineStatus returns the next status for a student: login when there is
// no prior event or the most recent one is a logout, logout otherwise. Pure
// decision over the store's current state.
func (s *Service) DetermineStatus(ctx context.Context, studentID string) (string, error) {
	last, err := s.repo.LastStatus(ctx, studentID)
	if err != nil {
		return "", err
	}
	if last == StatusLogin {
		return StatusLogout, nil
	}
	return StatusLogin, nil
}

// Recognize runs the full pipeline for one captured frame: match, derive
// status, record the event, and hand a login off to the notifier. The
// decide-then-record step is serialized per student so concurrent
// recognitions cannot break the alternation invariant.
func (s *Service) Recognize(ctx context.Context, photo []byte, filename string) (Result, error) {
	mctx, cancel := context.WithTimeout(ctx, s.matchTimeout)
	defer cancel()

	search, err := s.matcher.Search(mctx, photo, filename)
	if err != nil {
		recognitionsTotal.WithLabelValues("matcher_error").Inc()
		return Result{}, mapTimeout("face search", err)
	}
	if len(search.Matches) == 0 {
		recognitionsTotal.WithLabelValues("unknown_face").Inc()
		return Result{}, ErrUnknownFace
	}

	best := search.Matches[0]
	studentID, name, err := ParseIdentityLabel(best.Identity)
	if err != nil {
		recognitionsTotal.WithLabelValues("malformed_identity").Inc()
		return Result{}, err
	}

	evt, status, err := s.recordNext(ctx, studentID, name)
	if err != nil {
		recognitionsTotal.WithLabelValues("storage_error").Inc()
		return Result{}, err
	}

	if status == StatusLogin && s.notifier != nil {
		if nerr := s.notifier.NotifyLogin(ctx, studentID, name); nerr != nil {
			notificationsTotal.WithLabelValues("failed").Inc()
			log.Printf("login notification for %s failed: %v", studentID, nerr)
		} else {
			notificationsTotal.WithLabelValues("sent").Inc()
		}
	}

	late := false
	if status == StatusLogin {
		late, _ = timeutil.IsLate(evt.Timestamp, s.lateHour)
	}

	recognitionsTotal.WithLabelValues(status).Inc()
	return Result{
		StudentID: studentID,
		Name:      name,
		Status:    status,
		Distance:  best.Distance,
		Timestamp: evt.Timestamp,
		Late:      late,
	}, nil
}

// recordNext derives and appends the student's next event under that
// student's lock. The lock covers only decide-then-record; slower work such
// as notification delivery runs after it is released.
func (s *Service) recordNext(ctx context.Context, studentID, name string) (Event, string, error) {
	lock := s.studentLock(studentID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	status, err := s.DetermineStatus(sctx, studentID)
	if err != nil {
		return Event{}, "", mapTimeout("determine status", err)
	}
	evt, err := s.repo.AppendAttendance(sctx, studentID, name, status)
	if err != nil {
		return Event{}, "", mapTimeout("append attendance", err)
	}
	return evt, status, nil
}

// Register upserts a student and enrolls their face photo with the matcher.
// Enrollment failure is logged, not fatal; the face can be re-enrolled later.
func (s *Service) Register(ctx context.Context, studentID, name, email, course string, photo []byte, filename string) (*Student, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.repo.UpsertStudent(sctx, studentID, name, email, course); err != nil {
		return nil, mapTimeout("upsert student", err)
	}

	if len(photo) > 0 {
		mctx, mcancel := context.WithTimeout(ctx, s.matchTimeout)
		defer mcancel()
		if _, err := s.matcher.Enroll(mctx, IdentityLabel(studentID, name), photo, filename); err != nil {
			log.Printf("face enroll for %s failed: %v", studentID, err)
		}
	}

	return s.repo.GetStudent(ctx, studentID)
}

// Summary aggregates one student's session history. A session is a login
// paired with the following logout; an unpaired trailing login counts as an
// open session and contributes no duration.
type Summary struct {
	StudentID    string `json:"student_id"`
	Name         string `json:"name"`
	Sessions     int    `json:"sessions"`
	OpenSession  bool   `json:"open_session"`
	TotalMinutes int    `json:"total_minutes"`
	TotalPretty  string `json:"total_pretty"`
	DaysPresent  int    `json:"days_present"`
	LateLogins   int    `json:"late_logins"`
}

// Summarize pairs a student's login/logout events into sessions.
func (s *Service) Summarize(ctx context.Context, studentID string) (Summary, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	events, err := s.repo.ListStudentAttendance(sctx, studentID)
	if err != nil {
		return Summary{}, mapTimeout("list student attendance", err)
	}

	sum := Summary{StudentID: studentID}
	days := make(map[string]struct{})
	var openLogin string
	for _, evt := range events {
		sum.Name = evt.Name
		switch evt.Status {
		case StatusLogin:
			openLogin = evt.Timestamp
			if len(evt.Timestamp) >= 10 {
				days[evt.Timestamp[:10]] = struct{}{}
			}
			if late, lerr := timeutil.IsLate(evt.Timestamp, s.lateHour); lerr == nil && late {
				sum.LateLogins++
			}
		case StatusLogout:
			if openLogin == "" {
				continue
			}
			minutes, derr := timeutil.Duration(openLogin, evt.Timestamp)
			if derr == nil && minutes >= 0 {
				sum.TotalMinutes += minutes
			}
			sum.Sessions++
			openLogin = ""
		}
	}
	sum.OpenSession = openLogin != ""
	sum.DaysPresent = len(days)
	sum.TotalPretty = timeutil.FormatDuration(sum.TotalMinutes)
	return sum, nil
}

func (s *Service) studentLock(studentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[studentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[studentID] = l
	}
	return l
}

func mapTimeout(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return err
}
