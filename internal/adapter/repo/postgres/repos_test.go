package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCandidateRepo_FindByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewCandidateRepo(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id::text, email, first_name, last_name, created_at FROM candidates").
		WithArgs("ada@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "first_name", "last_name", "created_at"}).
			AddRow("c-1", "ada@example.com", "Ada", "Lovelace", now))
	c, err := repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, "Lovelace", c.LastName)

	mock.ExpectQuery("FROM candidates").WithArgs("nobody@example.com").WillReturnError(pgx.ErrNoRows)
	_, err = repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	mock.ExpectQuery("FROM candidates").WithArgs("x@example.com").WillReturnError(errors.New("conn reset"))
	_, err = repo.FindByEmail(context.Background(), "x@example.com")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	assert.False(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepo_Create_DuplicateIsConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewCandidateRepo(mock)

	mock.ExpectQuery("INSERT INTO candidates").
		WithArgs(pgxmock.AnyArg(), "ada@example.com", "Ada", "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	c, err := repo.Create(context.Background(), domain.Candidate{Email: "ada@example.com", FirstName: "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	mock.ExpectQuery("INSERT INTO candidates").
		WithArgs(pgxmock.AnyArg(), "ada@example.com", "Ada", "", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = repo.Create(context.Background(), domain.Candidate{Email: "ada@example.com", FirstName: "Ada"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInterviewRepo_Get(t *testing.T) {
	mock := newMock(t)
	repo := NewInterviewRepo(mock)
	now := time.Now().UTC()
	bank := []byte(`[{"id":"q1","text":"2+2?","category":"math","options":[{"id":"a","text":"4","correct":true},{"id":"b","text":"5"}]}]`)

	mock.ExpectQuery("FROM interviews WHERE id").
		WithArgs("iv-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "type", "round_number", "questions", "created_at"}).
			AddRow("iv-1", "Round 1", "mcq", 2, bank, now))
	iv, err := repo.Get(context.Background(), "iv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewMCQ, iv.Type)
	assert.Equal(t, 2, iv.RoundNumber)
	require.Len(t, iv.Questions, 1)
	id, ok := iv.Questions[0].CorrectOptionID()
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	mock.ExpectQuery("FROM interviews WHERE id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInterviewRepo_Upsert_DefaultsRound(t *testing.T) {
	mock := newMock(t)
	repo := NewInterviewRepo(mock)

	mock.ExpectExec("INSERT INTO interviews").
		WithArgs("iv-1", "Behavioral", "behavioral", 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	err := repo.Upsert(context.Background(), domain.Interview{ID: "iv-1", Title: "Behavioral", Type: domain.InterviewBehavioral})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepo_Upsert_ReportsInsertVersusOverwrite(t *testing.T) {
	mock := newMock(t)
	repo := NewResultRepo(mock)
	now := time.Now().UTC()
	in := domain.ScoredResult{
		InterviewID: "iv-1", CandidateID: "c-1", InterviewType: domain.InterviewMCQ,
		Score: 3, MaxScore: 5, Percentage: 60, Passed: true,
		Feedback:  domain.Feedback{OverallPerformance: "Average performance", Source: domain.FeedbackSourceRules},
		StartedAt: now.Add(-5 * time.Minute), CompletedAt: now, RoundNumber: 1,
	}
	cols := []string{"id", "created_at", "updated_at", "inserted"}

	// id, feedback and the write timestamp are generated inside Upsert
	args := []any{
		pgxmock.AnyArg(), "iv-1", "c-1", "mcq", "completed",
		3, 5, 60, 0, true, pgxmock.AnyArg(),
		in.StartedAt, in.CompletedAt, 1, pgxmock.AnyArg(),
	}

	mock.ExpectQuery("INSERT INTO interview_results").
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("r-1", now, now, true))
	out, err := repo.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "r-1", out.ID)
	assert.True(t, out.Inserted)
	assert.Equal(t, domain.ResultCompleted, out.Status)

	later := now.Add(time.Minute)
	mock.ExpectQuery("INSERT INTO interview_results").
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("r-1", now, later, false))
	out, err = repo.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "r-1", out.ID, "resubmission keeps the row id")
	assert.False(t, out.Inserted)
	assert.Equal(t, later, out.UpdatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepo_Upsert_RejectsScoreAboveMax(t *testing.T) {
	mock := newMock(t)
	_, err := NewResultRepo(mock).Upsert(context.Background(), domain.ScoredResult{Score: 6, MaxScore: 5})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepo_Get(t *testing.T) {
	mock := newMock(t)
	repo := NewResultRepo(mock)
	now := time.Now().UTC()
	cols := []string{"id", "interview_id", "candidate_id", "interview_type", "status", "score", "max_score", "percentage", "duration_minutes", "passed", "feedback", "started_at", "completed_at", "round_number", "created_at", "updated_at"}

	mock.ExpectQuery("FROM interview_results WHERE interview_id").
		WithArgs("iv-1", "c-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"r-1", "iv-1", "c-1", "mcq", "completed", 4, 5, 80, 3, true,
			`{"overallPerformance":"Strong performance","strengths":["x"],"improvements":[],"perQuestionNotes":[],"source":"rules"}`,
			now.Add(-3*time.Minute), now, 1, now, now))
	res, err := repo.Get(context.Background(), "iv-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, 80, res.Percentage)
	assert.Equal(t, "Strong performance", res.Feedback.OverallPerformance)
	assert.Equal(t, domain.FeedbackSourceRules, res.Feedback.Source)

	mock.ExpectQuery("FROM interview_results WHERE interview_id").
		WithArgs("iv-1", "c-2").WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), "iv-1", "c-2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPhotoRepo_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewPhotoRepo(mock)
	data := []byte{0xff, 0xd8, 0xff}

	mock.ExpectExec("INSERT INTO candidate_photos").
		WithArgs(pgxmock.AnyArg(), "ada@example.com", "iv-1", "image/jpeg", int64(3), data, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := repo.Create(context.Background(), domain.Photo{CandidateEmail: "ada@example.com", InterviewID: "iv-1", MIME: "image/jpeg", Size: 3, Data: data})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	mock.ExpectExec("INSERT INTO candidate_photos").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	_, err = repo.Create(context.Background(), domain.Photo{})
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPhotoRepo_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewPhotoRepo(mock)

	mock.ExpectExec("DELETE FROM candidate_photos WHERE id").
		WithArgs("photo-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), "photo-1"))

	mock.ExpectExec("DELETE FROM candidate_photos WHERE id").
		WithArgs("photo-2").
		WillReturnError(errors.New("connection reset"))
	err := repo.Delete(context.Background(), "photo-2")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupService_CleanupOldData(t *testing.T) {
	mock := newMock(t)
	svc := NewCleanupService(mock, 0)
	assert.Equal(t, 90, svc.RetentionDays)

	mock.ExpectExec("DELETE FROM candidate_photos WHERE created_at").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	n, err := svc.CleanupOldData(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	mock.ExpectExec("DELETE FROM candidate_photos").WithArgs(pgxmock.AnyArg()).WillReturnError(errors.New("boom"))
	_, err = svc.CleanupOldData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=cleanup.photos")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupService_RunPeriodicStopsOnCancel(t *testing.T) {
	mock := newMock(t)
	svc := NewCleanupService(mock, 30)
	mock.ExpectExec("DELETE FROM candidate_photos").WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunPeriodic(ctx, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not return after cancel")
	}
}

func TestEnsureSchema(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS candidates").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, EnsureSchema(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}
