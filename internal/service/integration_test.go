package service_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizroom/quizroom-backend/internal/cache"
	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/quizroom/quizroom-backend/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

var (
	testPool   *pgxpool.Pool
	skipReason string
	setupErr   error
)

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(runWithPostgres(m))
}

func runWithPostgres(m *testing.M) int {
	if testing.Short() {
		skipReason = "integration tests skipped with -short"
		return m.Run()
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		skipReason = fmt.Sprintf("docker not available: %v", err)
		return m.Run()
	}

	ctx := context.Background()
	container, dsn, err := startPostgres(ctx)
	if err != nil {
		setupErr = err
		return m.Run()
	}
	defer func() { _ = container.Terminate(ctx) }()

	if err := applyMigrations(dsn); err != nil {
		setupErr = err
		return m.Run()
	}

	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		setupErr = err
		return m.Run()
	}
	defer testPool.Close()

	return m.Run()
}

func startPostgres(ctx context.Context) (tc.Container, string, error) {
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizroom"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start postgres: %w", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		return container, "", fmt.Errorf("host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return container, "", fmt.Errorf("port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizroom?sslmode=disable", host, port.Port())
	return container, dsn, nil
}

func applyMigrations(dsn string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// db returns the shared pool with every table emptied.
func db(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if skipReason != "" {
		t.Skip(skipReason)
	}
	if setupErr != nil {
		t.Fatalf("postgres setup: %v", setupErr)
	}
	if _, err := testPool.Exec(context.Background(),
		`TRUNCATE users, subjects, tags RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return testPool
}

// ─── Fixtures ──────────────────────────────────────────────────────────

type fixture struct {
	pool      *pgxpool.Pool
	admin     *model.User
	teacher   *model.User
	student   *model.User
	student2  *model.User
	subject   *model.Subject
	questions *service.QuestionService
	quizzes   *service.QuizService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	pool := db(t)

	auth := service.NewAuthService(&config.Config{
		JWTSecret:  "integration-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, pool)

	mkUser := func(name string, role model.Role) *model.User {
		u, err := auth.CreateUser(ctx, name, name+"@quizroom.test", "secret123", role)
		if err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
		return u
	}

	subject := &model.Subject{Name: "Mathematics"}
	if err := repository.NewSubjectRepository(pool).CreateSubject(ctx, subject); err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}

	return &fixture{
		pool:      pool,
		admin:     mkUser("admin", model.RoleAdmin),
		teacher:   mkUser("teacher", model.RoleTeacher),
		student:   mkUser("student", model.RoleStudent),
		student2:  mkUser("student2", model.RoleStudent),
		subject:   subject,
		questions: service.NewQuestionService(pool, zerolog.Nop()),
		quizzes:   service.NewQuizService(pool, zerolog.Nop()),
	}
}

// question creates a three-option question whose first option is correct.
func (f *fixture) question(t *testing.T, text string) *model.Question {
	t.Helper()
	q, err := f.questions.CreateQuestion(context.Background(), model.CreateQuestionRequest{
		SubjectID:    f.subject.ID,
		QuestionText: text,
		Options: []model.OptionInput{
			{OptionText: "right", IsCorrect: true},
			{OptionText: "wrong A"},
			{OptionText: "wrong B"},
		},
		Explanations: model.Explanations{"correct": "yes", "wrong": "no", "option3": "B is a trap"},
	}, f.teacher.ID)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	return q
}

func (f *fixture) quiz(t *testing.T, limit *int, qs ...*model.Question) *model.Quiz {
	t.Helper()
	ids := make([]int64, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	quiz, err := f.quizzes.CreateQuiz(context.Background(), model.CreateQuizRequest{
		Title:            "Integration quiz",
		Mode:             string(model.QuizModeMixedBag),
		TimeLimitMinutes: limit,
		QuestionIDs:      ids,
	}, f.teacher.ID)
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	return quiz
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func minutes(n int) *int { return &n }

// ─── Review state machine ──────────────────────────────────────────────

func TestReviewWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	review := service.NewReviewService(f.pool, zerolog.Nop())
	q := f.question(t, "2 + 2?")

	ok, err := review.AssignTo(ctx, q.ID, f.teacher.ID, f.teacher.ID)
	if err != nil || !ok {
		t.Fatalf("AssignTo = %v, %v", ok, err)
	}
	if ok, _ := review.AssignTo(ctx, q.ID, f.admin.ID, f.admin.ID); ok {
		t.Fatal("AssignTo on an under_review question must be rejected")
	}

	got, err := f.questions.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if got.State != model.StateUnderReview || got.AssignedTo == nil || *got.AssignedTo != f.teacher.ID {
		t.Fatalf("after assign: state %s assigned %v", got.State, got.AssignedTo)
	}

	tests := []struct {
		user    int64
		isAdmin bool
		want    bool
	}{
		{f.teacher.ID, false, true},
		{f.student.ID, false, false},
		{f.admin.ID, true, true},
	}
	for _, tt := range tests {
		can, err := review.CanBeUnassigned(ctx, q.ID, tt.user, tt.isAdmin)
		if err != nil || can != tt.want {
			t.Fatalf("CanBeUnassigned(%d, %v) = %v, %v; want %v", tt.user, tt.isAdmin, can, err, tt.want)
		}
	}

	if ok, err := review.Unassign(ctx, q.ID, f.teacher.ID); err != nil || !ok {
		t.Fatalf("Unassign = %v, %v", ok, err)
	}
	if ok, _ := review.Unassign(ctx, q.ID, f.teacher.ID); ok {
		t.Fatal("Unassign without an assignee must be rejected")
	}

	if ok, _ := review.ChangeState(ctx, q.ID, "archived", f.admin.ID, ""); ok {
		t.Fatal("unknown state must be rejected")
	}
	if ok, err := review.ChangeState(ctx, q.ID, model.StateDone, f.admin.ID, "approved"); err != nil || !ok {
		t.Fatalf("ChangeState(done) = %v, %v", ok, err)
	}
	if ok, err := review.ChangeState(ctx, q.ID, model.StateDone, f.admin.ID, ""); err != nil || !ok {
		t.Fatalf("self transition = %v, %v", ok, err)
	}

	history, err := review.History(ctx, q.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []struct{ from, to model.QuestionState }{
		{model.StateInitial, model.StateUnderReview},
		{model.StateUnderReview, model.StateInitial},
		{model.StateInitial, model.StateDone},
		{model.StateDone, model.StateDone},
	}
	if len(history) != len(want) {
		t.Fatalf("history has %d entries, want %d", len(history), len(want))
	}
	for i, w := range want {
		if history[i].FromState != w.from || history[i].ToState != w.to {
			t.Fatalf("history[%d] = %s -> %s, want %s -> %s", i, history[i].FromState, history[i].ToState, w.from, w.to)
		}
	}
	if history[1].Notes == nil || *history[1].Notes != model.UnassignNote {
		t.Fatalf("unassign note = %v", history[1].Notes)
	}
	if history[2].Notes == nil || *history[2].Notes != "approved" {
		t.Fatalf("override note = %v", history[2].Notes)
	}

	done := model.StateDone
	queue, page, err := review.ReviewQueue(ctx, model.ReviewQueueFilter{State: &done})
	if err != nil {
		t.Fatalf("ReviewQueue: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != q.ID || page.TotalItems != 1 {
		t.Fatalf("queue = %+v, page = %+v", queue, page)
	}

	if _, err := review.AssignTo(ctx, 9999, f.teacher.ID, f.teacher.ID); !errors.Is(err, service.ErrQuestionNotFound) {
		t.Fatalf("AssignTo unknown id err = %v", err)
	}
}

func TestAssignToUnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	review := service.NewReviewService(f.pool, zerolog.Nop())
	q := f.question(t, "3 + 3?")

	ok, err := review.AssignTo(ctx, q.ID, 999999, f.admin.ID)
	if !errors.Is(err, service.ErrUserNotFound) || ok {
		t.Fatalf("AssignTo(missing user) = %v, %v; want ErrUserNotFound", ok, err)
	}

	got, err := f.questions.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if got.State != model.StateInitial || got.AssignedTo != nil {
		t.Fatalf("question changed: state %s assigned %v", got.State, got.AssignedTo)
	}
	if history, err := review.History(ctx, q.ID); err != nil || len(history) != 0 {
		t.Fatalf("History = %v, %v; want empty", history, err)
	}
}

func TestChangeStateClearsAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	review := service.NewReviewService(f.pool, zerolog.Nop())
	q := f.question(t, "3 + 3?")

	if ok, err := review.AssignTo(ctx, q.ID, f.teacher.ID, f.admin.ID); err != nil || !ok {
		t.Fatalf("AssignTo = %v, %v", ok, err)
	}
	if ok, err := review.ChangeState(ctx, q.ID, model.StateDone, f.admin.ID, ""); err != nil || !ok {
		t.Fatalf("ChangeState = %v, %v", ok, err)
	}
	got, err := f.questions.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if got.AssignedTo != nil {
		t.Fatalf("assigned_to = %d after leaving under_review", *got.AssignedTo)
	}
}

// ─── Attempt engine ────────────────────────────────────────────────────

func newAttempts(t *testing.T, pool *pgxpool.Pool, clock *testClock) (*service.AttemptService, *cache.DeadlineIndex) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idx := cache.NewDeadlineIndex(rdb)
	return service.NewAttemptService(pool, idx, zerolog.Nop()).WithClock(clock.Now), idx
}

func TestAttemptScoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clock := &testClock{now: time.Now().UTC()}
	attempts, idx := newAttempts(t, f.pool, clock)

	q1, q2, q3 := f.question(t, "Q1"), f.question(t, "Q2"), f.question(t, "Q3")
	quiz := f.quiz(t, minutes(10), q1, q2, q3)

	a, err := attempts.Start(ctx, quiz.ID, f.student.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.TotalQuestions != 3 || a.EndsAt == nil || !a.EndsAt.Equal(a.StartedAt.Add(10*time.Minute)) {
		t.Fatalf("attempt = %+v", a)
	}
	if n, _ := idx.Len(ctx); n != 1 {
		t.Fatalf("deadline index size = %d, want 1", n)
	}

	again, err := attempts.Start(ctx, quiz.ID, f.student.ID)
	if err != nil || again.ID != a.ID {
		t.Fatalf("second Start = %v, %v; want the open attempt", again, err)
	}

	view, err := attempts.Take(ctx, a.ID, f.student.ID, 1)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if view.QuestionID != q2.ID || len(view.Options) != 3 || view.RemainingSeconds == nil || *view.RemainingSeconds != 600 {
		t.Fatalf("view = %+v", view)
	}

	var rangeErr *service.RangeError
	if _, err := attempts.Take(ctx, a.ID, f.student.ID, 3); !errors.As(err, &rangeErr) || !rangeErr.PastEnd() {
		t.Fatalf("Take(3) err = %v", err)
	}
	if _, err := attempts.Take(ctx, a.ID, f.student.ID, -1); !errors.Is(err, service.ErrIndexOutOfRange) {
		t.Fatalf("Take(-1) err = %v", err)
	}
	if _, err := attempts.Take(ctx, a.ID, f.student2.ID, 0); !errors.Is(err, service.ErrAttemptNotFound) {
		t.Fatalf("foreign Take err = %v", err)
	}

	right := q1.Options[0].ID
	res, err := attempts.SubmitSingle(ctx, a.ID, f.student.ID, 0, &right)
	if err != nil {
		t.Fatalf("Submit Q1: %v", err)
	}
	if res.NextIndex != 1 || res.Finished || res.Answer.IsCorrect == nil || !*res.Answer.IsCorrect {
		t.Fatalf("Submit Q1 result = %+v", res)
	}

	foreign := q2.Options[0].ID
	if _, err := attempts.SubmitSingle(ctx, a.ID, f.student.ID, 0, &foreign); !errors.Is(err, model.ErrOptionMismatch) {
		t.Fatalf("mismatched option err = %v", err)
	}

	again0, err := attempts.SubmitSingle(ctx, a.ID, f.student.ID, 0, &right)
	if err != nil || again0.Answer.IsCorrect == nil || !*again0.Answer.IsCorrect || again0.NextIndex != 1 {
		t.Fatalf("resubmit Q1 = %+v, %v; want the same grade", again0, err)
	}

	if res, err := attempts.SubmitSingle(ctx, a.ID, f.student.ID, 1, nil); err != nil || res.Answer.IsCorrect != nil {
		t.Fatalf("skip Q2 = %+v, %v", res, err)
	}

	flagged, err := attempts.ToggleFlag(ctx, a.ID, f.student.ID, 2)
	if err != nil || !flagged.IsFlagged {
		t.Fatalf("ToggleFlag = %+v, %v", flagged, err)
	}
	if at, err := attempts.Resume(ctx, a.ID, f.student.ID); err != nil || at != 2 {
		t.Fatalf("Resume = %d, %v; want 2", at, err)
	}

	wrong := q3.Options[2].ID
	res, err = attempts.SubmitSingle(ctx, a.ID, f.student.ID, 2, &wrong)
	if err != nil {
		t.Fatalf("Submit Q3: %v", err)
	}
	if !res.Finished || res.Attempt == nil {
		t.Fatalf("last submit did not finish: %+v", res)
	}
	if res.Attempt.TotalCorrect != 1 || res.Attempt.TotalIncorrect != 2 || res.Attempt.Score != 1 {
		t.Fatalf("tally = %d/%d score %d", res.Attempt.TotalCorrect, res.Attempt.TotalIncorrect, res.Attempt.Score)
	}
	if n, _ := idx.Len(ctx); n != 0 {
		t.Fatalf("deadline index size = %d after finish", n)
	}

	if _, err := attempts.Finish(ctx, a.ID, f.student.ID); !errors.Is(err, service.ErrAttemptClosed) {
		t.Fatalf("second Finish err = %v", err)
	}
	if _, err := attempts.Take(ctx, a.ID, f.student.ID, 0); !errors.Is(err, service.ErrAttemptClosed) {
		t.Fatalf("Take after finish err = %v", err)
	}
	if _, err := attempts.SubmitSingle(ctx, a.ID, f.student.ID, 1, &right); !errors.Is(err, service.ErrAttemptClosed) {
		t.Fatalf("Submit after finish err = %v", err)
	}

	review, err := attempts.Review(ctx, a.ID, f.student.ID)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(review.Items) != 3 {
		t.Fatalf("review items = %d", len(review.Items))
	}
	if !review.Items[0].IsCorrect || review.Items[0].Explanation != "yes" {
		t.Fatalf("item 0 = %+v", review.Items[0])
	}
	if !review.Items[1].Skipped || review.Items[1].IsCorrect || review.Items[1].Explanation != "no" {
		t.Fatalf("item 1 = %+v", review.Items[1])
	}
	if review.Items[2].IsCorrect || review.Items[2].Explanation != "B is a trap" {
		t.Fatalf("item 2 = %+v", review.Items[2])
	}

	list, err := attempts.ListAttempts(ctx, f.student.ID)
	if err != nil || len(list) != 1 || !list[0].Finished() {
		t.Fatalf("ListAttempts = %+v, %v", list, err)
	}
	if list[0].Score != 1 || list[0].TotalCorrect != 1 || list[0].TotalIncorrect != 2 {
		t.Fatalf("stored tally changed: %d/%d score %d", list[0].TotalCorrect, list[0].TotalIncorrect, list[0].Score)
	}
}

func TestReviewRequiresFinishedAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempts, _ := newAttempts(t, f.pool, &testClock{now: time.Now().UTC()})
	quiz := f.quiz(t, nil, f.question(t, "Q1"))

	a, err := attempts.Start(ctx, quiz.ID, f.student.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.EndsAt != nil {
		t.Fatalf("untimed quiz got ends_at %v", a.EndsAt)
	}
	if _, err := attempts.Review(ctx, a.ID, f.student.ID); !errors.Is(err, service.ErrAttemptOpen) {
		t.Fatalf("Review of open attempt err = %v", err)
	}

	snap, err := attempts.Timer(ctx, a.ID, f.student.ID)
	if err != nil || snap.RemainingSeconds != nil || snap.Finished {
		t.Fatalf("Timer = %+v, %v", snap, err)
	}

	done, err := attempts.Finish(ctx, a.ID, f.student.ID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if done.TotalCorrect != 0 || done.TotalIncorrect != 1 || done.EndedAt == nil {
		t.Fatalf("finished attempt = %+v", done)
	}
}

func TestDeadlineEnforcement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Hour)
	clock := &testClock{now: start}
	attempts, idx := newAttempts(t, f.pool, clock)

	q1 := f.question(t, "Q1")
	quiz := f.quiz(t, minutes(5), q1, f.question(t, "Q2"))

	a, err := attempts.Start(ctx, quiz.ID, f.student.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	b, err := attempts.Start(ctx, quiz.ID, f.student2.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	right := q1.Options[0].ID
	if _, err := attempts.SubmitSingle(ctx, a.ID, f.student.ID, 0, &right); err != nil {
		t.Fatalf("Submit in time: %v", err)
	}

	clock.Advance(6 * time.Minute)

	if _, err := attempts.SubmitSingle(ctx, a.ID, f.student.ID, 1, &right); !errors.Is(err, service.ErrAttemptExpired) {
		t.Fatalf("late Submit err = %v", err)
	}
	if _, err := attempts.Take(ctx, a.ID, f.student.ID, 0); !errors.Is(err, service.ErrAttemptClosed) {
		t.Fatalf("Take after late submit err = %v", err)
	}

	list, err := attempts.ListAttempts(ctx, f.student.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAttempts = %+v, %v", list, err)
	}
	if list[0].TotalCorrect != 1 || list[0].TotalIncorrect != 1 {
		t.Fatalf("expired tally = %d/%d", list[0].TotalCorrect, list[0].TotalIncorrect)
	}

	due, err := idx.ClaimDue(ctx, clock.Now(), 10)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(due) != 1 || due[0] != b.ID {
		t.Fatalf("due = %v, want [%s]", due, b.ID)
	}

	closed, err := attempts.ForceFinishExpired(ctx, clock.Now(), 10)
	if err != nil || closed != 1 {
		t.Fatalf("ForceFinishExpired = %d, %v", closed, err)
	}
	if ok, err := attempts.ForceFinish(ctx, b.ID); err != nil || ok {
		t.Fatalf("ForceFinish of closed attempt = %v, %v", ok, err)
	}

	// A new Start after expiry opens a fresh attempt.
	fresh, err := attempts.Start(ctx, quiz.ID, f.student2.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if fresh.ID == b.ID || fresh.Finished() {
		t.Fatalf("restart returned %+v", fresh)
	}
}

func TestStartIsExpiredAware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clock := &testClock{now: time.Now().UTC().Add(-time.Hour)}
	attempts, _ := newAttempts(t, f.pool, clock)
	quiz := f.quiz(t, minutes(1), f.question(t, "Q1"))

	old, err := attempts.Start(ctx, quiz.ID, f.student.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(2 * time.Minute)

	next, err := attempts.Start(ctx, quiz.ID, f.student.ID)
	if err != nil {
		t.Fatalf("Start after expiry: %v", err)
	}
	if next.ID == old.ID {
		t.Fatal("expired attempt was resumed")
	}

	snap, err := attempts.Timer(ctx, old.ID, f.student.ID)
	if err != nil || !snap.Finished {
		t.Fatalf("old attempt Timer = %+v, %v", snap, err)
	}
}

func TestConcurrentStartOpensOneAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempts, _ := newAttempts(t, f.pool, &testClock{now: time.Now().UTC()})
	quiz := f.quiz(t, minutes(10), f.question(t, "Q1"))

	const n = 8
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := attempts.Start(ctx, quiz.ID, f.student.ID)
			errs[i] = err
			if a != nil {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Start[%d]: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("Start[%d] = %s, Start[0] = %s", i, ids[i], ids[0])
		}
	}
}

// ─── Explorer ──────────────────────────────────────────────────────────

func TestExplorerSummary(t *testing.T) {
	pool := db(t)
	ctx := context.Background()
	subjects := repository.NewSubjectRepository(pool)

	mkSubject := func(name string) int64 {
		s := &model.Subject{Name: name}
		if err := subjects.CreateSubject(ctx, s); err != nil {
			t.Fatalf("CreateSubject: %v", err)
		}
		return s.ID
	}
	mkTag := func(text string) int64 {
		tag := &model.Tag{TagText: text}
		if err := subjects.CreateTag(ctx, tag); err != nil {
			t.Fatalf("CreateTag: %v", err)
		}
		return tag.ID
	}

	math, physics, history := mkSubject("Mathematics"), mkSubject("Physics"), mkSubject("History")
	algebra, vectors, archived := mkTag("algebra"), mkTag("vectors"), mkTag("archived")
	for _, link := range [][2]int64{{math, algebra}, {math, vectors}, {physics, algebra}, {physics, vectors}} {
		if err := subjects.LinkTag(ctx, link[0], link[1]); err != nil {
			t.Fatalf("LinkTag: %v", err)
		}
	}

	explorer := service.NewExplorerService(pool, nil, zerolog.Nop())
	s, err := explorer.Summary(ctx, 1)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.TotalRelationships != 4 {
		t.Fatalf("total = %d", s.TotalRelationships)
	}
	if len(s.TopSubjects) != 1 || s.TopSubjects[0].ID != math || s.TopSubjects[0].Count != 2 {
		t.Fatalf("top subjects = %+v (tie must break on lower id)", s.TopSubjects)
	}
	if len(s.TopTags) != 1 || s.TopTags[0].ID != algebra {
		t.Fatalf("top tags = %+v", s.TopTags)
	}
	if s.OrphanedSubjectCount != 1 || s.OrphanedSubjects[0].ID != history {
		t.Fatalf("orphaned subjects = %+v", s.OrphanedSubjects)
	}
	if s.OrphanedTagCount != 1 || s.OrphanedTags[0].ID != archived {
		t.Fatalf("orphaned tags = %+v", s.OrphanedTags)
	}

	rels, page, err := explorer.List(ctx, model.RelationshipFilter{Search: "PHYS"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rels) != 2 || page.TotalItems != 2 || page.PerPage != model.DefaultPageSize {
		t.Fatalf("search rows = %+v, page = %+v", rels, page)
	}

	tagOnly := vectors
	rels, _, err = explorer.List(ctx, model.RelationshipFilter{TagID: &tagOnly, PerPage: 1})
	if err != nil || len(rels) != 1 || rels[0].TagID != vectors {
		t.Fatalf("tag filter = %+v, %v", rels, err)
	}

	linAlg := mkTag("lin_alg")
	if err := subjects.LinkTag(ctx, math, linAlg); err != nil {
		t.Fatalf("LinkTag: %v", err)
	}
	for _, tt := range []struct {
		search string
		want   int
	}{{"_", 1}, {"%", 0}, {`\`, 0}, {"LIN_A", 1}} {
		rels, _, err := explorer.List(ctx, model.RelationshipFilter{Search: tt.search})
		if err != nil {
			t.Fatalf("List(%q): %v", tt.search, err)
		}
		if len(rels) != tt.want {
			t.Fatalf("search %q matched %d rows, want %d literal matches", tt.search, len(rels), tt.want)
		}
		if tt.want == 1 && rels[0].TagID != linAlg {
			t.Fatalf("search %q matched %+v", tt.search, rels[0])
		}
	}
}
