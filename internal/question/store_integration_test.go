package question

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	internaldb "quizbank/internal/db"

	"github.com/google/uuid"
)

func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("QUIZBANK_INTEGRATION") != "1" {
		t.Skip("set QUIZBANK_INTEGRATION=1 to run integration tests")
	}
	dsn := os.Getenv("QUIZBANK_TEST_DSN")
	if dsn == "" {
		t.Skip("QUIZBANK_TEST_DSN is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := internaldb.OpenPostgres(ctx, dsn, internaldb.DefaultPostgresConfig())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := internaldb.Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestPostgresStore_DBIntegration_RoundTripAndFilters(t *testing.T) {
	conn := openIntegrationDB(t)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	store := NewPostgresStore(conn)

	suffix := time.Now().UnixNano()
	catA, catB := uuid.New(), uuid.New()
	tag := fmt.Sprintf("it_tag_%d", suffix)
	creator := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)

	q := &Question{
		ID:            uuid.New(),
		Title:         MediaText{Text: fmt.Sprintf("  ITEST question %d ", suffix)},
		Options:       opts("a", "b", "c", "d"),
		CorrectAnswer: 2,
		Explanation:   MediaText{Text: "because"},
		Categories:    []uuid.UUID{catA, catB},
		Tags:          []string{tag},
		Difficulty:    4,
		CreatedBy:     &creator,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Create(ctx, q); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = store.Delete(context.Background(), q.ID) }()

	got, err := store.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title.Text != q.Title.Text || got.CorrectAnswer != 2 || len(got.Options) != 4 || got.ApprovedBy != nil {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.CreatedBy == nil || *got.CreatedBy != creator {
		t.Fatalf("created_by not stored")
	}

	dup, err := store.ExistsByTitleText(ctx, fmt.Sprintf("ITEST question %d", suffix))
	if err != nil || !dup {
		t.Fatalf("trimmed title should match, dup=%v err=%v", dup, err)
	}

	byTag, err := store.List(ctx, ListFilter{Tag: tag})
	if err != nil || len(byTag) != 1 {
		t.Fatalf("tag filter: %v %v", byTag, err)
	}
	from, to := now.Add(-time.Minute), now.Add(time.Minute)
	byDate, err := store.List(ctx, ListFilter{CategoryID: &catA, From: &from, To: &to})
	if err != nil || len(byDate) != 1 {
		t.Fatalf("category and date filter: %v %v", byDate, err)
	}

	n, err := store.RemoveCategory(ctx, catA)
	if err != nil || n != 1 {
		t.Fatalf("remove category: n=%d err=%v", n, err)
	}
	got, _ = store.Get(ctx, q.ID)
	if len(got.Categories) != 1 || got.Categories[0] != catB {
		t.Fatalf("category not pruned: %v", got.Categories)
	}

	approver := uuid.New()
	got.IsApproved, got.ApprovedBy = true, &approver
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Get(ctx, q.ID)
	if !got.IsApproved || got.ApprovedBy == nil || *got.ApprovedBy != approver {
		t.Fatalf("approval not stored: %+v", got)
	}

	if err := store.Delete(ctx, q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, q.ID); err != ErrQuestionNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
