package question

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Import row outcomes.
const (
	OutcomeSuccessful = "successful"
	OutcomeFailed     = "failed"
	OutcomeSkipped    = "skipped"
)

// headerRows is added to a row's index so reported numbers match the
// spreadsheet line, counting the 1-based offset and the header line.
const headerRows = 2

type ImportedRow struct {
	Row   int       `json:"row"`
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type RowIssue struct {
	Row    int    `json:"row"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	Total           int           `json:"total"`
	SuccessfulCount int           `json:"successfulCount"`
	FailedCount     int           `json:"failedCount"`
	SkippedCount    int           `json:"skippedCount"`
	Successful      []ImportedRow `json:"successful"`
	Failed          []RowIssue    `json:"failed"`
	Skipped         []RowIssue    `json:"skipped"`
}

// ImportObserver is told the outcome of every imported row.
type ImportObserver interface {
	ObserveImportRow(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveImportRow(string) {}

// Reconciler imports spreadsheet rows one at a time. A row's failure is
// recorded in the report and never stops the batch; rows already written
// stay written.
type Reconciler struct {
	store    Store
	resolver *Resolver
	log      *logrus.Entry
	observer ImportObserver
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewReconciler(store Store, resolver *Resolver, log *logrus.Entry, observer ImportObserver) *Reconciler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Reconciler{
		store:    store,
		resolver: resolver,
		log:      log,
		observer: observer,
		now:      time.Now,
		newID:    uuid.New,
	}
}

type rowResult struct {
	outcome  string
	question *Question
	title    string
	reason   string
}

// Reconcile imports rows on behalf of actor, which may be uuid.Nil.
func (r *Reconciler) Reconcile(ctx context.Context, rows []Row, actor uuid.UUID) *ImportReport {
	report := &ImportReport{
		Total:      len(rows),
		Successful: make([]ImportedRow, 0),
		Failed:     make([]RowIssue, 0),
		Skipped:    make([]RowIssue, 0),
	}
	for i, row := range rows {
		rowNo := i + headerRows
		res := r.reconcileRow(ctx, row, actor)
		r.observer.ObserveImportRow(res.outcome)
		switch res.outcome {
		case OutcomeSuccessful:
			report.Successful = append(report.Successful, ImportedRow{Row: rowNo, ID: res.question.ID, Title: res.title})
		case OutcomeSkipped:
			report.Skipped = append(report.Skipped, RowIssue{Row: rowNo, Title: res.title, Reason: res.reason})
		default:
			report.Failed = append(report.Failed, RowIssue{Row: rowNo, Title: res.title, Reason: res.reason})
		}
	}
	report.SuccessfulCount = len(report.Successful)
	report.FailedCount = len(report.Failed)
	report.SkippedCount = len(report.Skipped)

	r.log.WithFields(logrus.Fields{
		"total":      report.Total,
		"successful": report.SuccessfulCount,
		"failed":     report.FailedCount,
		"skipped":    report.SkippedCount,
	}).Info("bulk import finished")
	return report
}

func (r *Reconciler) reconcileRow(ctx context.Context, raw Row, actor uuid.UUID) (res rowResult) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", p).Error("bulk import row panicked")
			res = rowResult{outcome: OutcomeFailed, title: res.title, reason: fmt.Sprint(p)}
		}
	}()

	row := foldRow(raw)
	fail := func(title, reason string) rowResult {
		return rowResult{outcome: OutcomeFailed, title: title, reason: reason}
	}

	title := MediaText{Text: row.get("titletext", "title"), Image: row.get("titleimage")}
	if title.Text == "" {
		return fail("", "title text required")
	}

	opts := make([]MediaText, 0, OptionCount)
	for i := 0; i < OptionCount; i++ {
		n := strconv.Itoa(i)
		text := row.get("option"+n+"text", "optiontext"+n)
		if text == "" {
			continue
		}
		opts = append(opts, MediaText{Text: text, Image: row.get("option"+n+"image", "optionimage"+n)})
	}
	if err := ValidateOptions(opts, BulkRange); err != nil {
		return fail(title.Text, "at least 2 options required")
	}

	idx := correctIndex(row.get("correctanswer"), row.get("correctanswertext"), opts)
	if err := ValidateCorrectAnswer(idx, opts); err != nil {
		return fail(title.Text, rangeMessage(len(opts)))
	}

	difficulty := DefaultDifficulty
	if n := leadingInt(row.get("difficulty")); n != nil && ValidateDifficulty(*n) == nil {
		difficulty = *n
	}

	cats, unresolved, err := r.resolver.ResolveCategoryNames(ctx, splitList(row.get("categories", "category")))
	if err != nil {
		return fail(title.Text, err.Error())
	}
	if len(unresolved) > 0 {
		return fail(title.Text, "categories not found: "+strings.Join(unresolved, ", "))
	}

	dup, err := r.store.ExistsByTitleText(ctx, title.Text)
	if err != nil {
		return fail(title.Text, err.Error())
	}
	if dup {
		return rowResult{outcome: OutcomeSkipped, title: title.Text, reason: "duplicate title"}
	}

	var createdBy *uuid.UUID
	if ref := row.get("createdby"); ref != "" {
		createdBy, err = r.resolver.ResolveUser(ctx, ref)
		if err != nil {
			return fail(title.Text, err.Error())
		}
	} else if actor != uuid.Nil {
		id := actor
		createdBy = &id
	}

	now := r.now().UTC()
	q := &Question{
		ID:            r.newID(),
		Title:         title,
		Options:       opts,
		CorrectAnswer: *idx,
		Explanation:   MediaText{Text: row.get("explanationtext", "explanation"), Image: row.get("explanationimage")},
		Categories:    cats,
		Tags:          nonNilTags(cleanTags(splitList(row.get("tags")))),
		Difficulty:    difficulty,
		CreatedBy:     createdBy,
		IsApproved:    false,
		ApprovedBy:    nil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.store.Create(ctx, q); err != nil {
		return fail(title.Text, err.Error())
	}
	return rowResult{outcome: OutcomeSuccessful, question: q, title: title.Text}
}

// correctIndex reads the answer column. When it is empty, or names a slot
// outside the collected options, the answer text column picks the option
// instead.
func correctIndex(raw, text string, opts []MediaText) *int {
	idx := leadingInt(raw)
	if idx != nil && *idx >= 0 && *idx < len(opts) {
		return idx
	}
	if text != "" {
		for i, o := range opts {
			if o.Text == text {
				return &i
			}
		}
	}
	return idx
}

type foldedRow map[string]string

func foldRow(raw Row) foldedRow {
	out := make(foldedRow, len(raw))
	for k, v := range raw {
		key := headerKey(k)
		if _, exists := out[key]; exists && strings.TrimSpace(v) == "" {
			continue
		}
		out[key] = v
	}
	return out
}

// get returns the trimmed value of the first key that is present.
func (r foldedRow) get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
