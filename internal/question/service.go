package question

import (
	"context"
	"io"
	"time"

	"quizbank/internal/apperr"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrNoQuestionsForTag = apperr.New(apperr.ErrNotFound, "No questions found with the specified tag")

type Service struct {
	store      Store
	resolver   *Resolver
	normalizer *Normalizer
	reconciler *Reconciler
	log        *logrus.Entry
	now        func() time.Time
	newID      func() uuid.UUID
}

type ServiceDeps struct {
	Store      Store
	Categories CategoryDirectory
	Users      UserDirectory
	Media      MediaStore
	Observer   ImportObserver
	Log        *logrus.Entry
}

func NewService(deps ServiceDeps) *Service {
	resolver := NewResolver(deps.Categories, deps.Users)
	return &Service{
		store:      deps.Store,
		resolver:   resolver,
		normalizer: NewNormalizer(deps.Media),
		reconciler: NewReconciler(deps.Store, resolver, deps.Log, deps.Observer),
		log:        deps.Log,
		now:        time.Now,
		newID:      uuid.New,
	}
}

// Create builds a question from either input shape. The draft is validated
// and its references resolved before any attachment is uploaded.
func (s *Service) Create(ctx context.Context, raw RawInput, files Attachments) (*Question, error) {
	d, err := Decode(raw, files)
	if err != nil {
		return nil, err
	}
	if err := Validate(d.candidate(), ExactlyFour); err != nil {
		return nil, err
	}

	cats, err := s.resolver.ResolveCategories(ctx, d.Categories)
	if err != nil {
		return nil, err
	}
	createdBy, err := s.resolver.ResolveUser(ctx, d.CreatedBy)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	q := &Question{
		ID:         s.newID(),
		Categories: cats,
		Tags:       nonNilTags(d.Tags),
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d.IsApproved != nil {
		if err := s.applyApproval(ctx, q, *d.IsApproved, d.ApprovedBy); err != nil {
			return nil, err
		}
	}

	if err := s.normalizer.Upload(ctx, d); err != nil {
		return nil, err
	}
	q.Title = d.Title.trimmed()
	q.Options = trimmedOptions(d.Options)
	q.Explanation = d.Explanation.trimmed()
	q.CorrectAnswer = *d.CorrectAnswer
	q.Difficulty = d.Difficulty

	if err := s.store.Create(ctx, q); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"question_id": q.ID.String(),
		"images":      countImages(q),
	}).Info("question created")
	return q, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Question, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Question, error) {
	return s.store.List(ctx, f)
}

// ListByTag fails with not found when no question carries tag.
func (s *Service) ListByTag(ctx context.Context, tag string) ([]Question, error) {
	items, err := s.store.List(ctx, ListFilter{Tag: tag})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoQuestionsForTag
	}
	return items, nil
}

// Update applies a partial patch. Only supplied fields are checked, except
// that the answer index is always re-checked against the merged options.
func (s *Service) Update(ctx context.Context, id uuid.UUID, raw RawInput, files Attachments) (*Question, error) {
	d, err := Decode(raw, files)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := existing.clone()
	d.applyTo(merged)
	if err := s.validatePatch(d, merged); err != nil {
		return nil, err
	}

	if d.Has(keyCategories) {
		cats, err := s.resolver.ResolveCategories(ctx, d.Categories)
		if err != nil {
			return nil, err
		}
		merged.Categories = cats
	}
	if d.Has(keyCreatedBy) {
		createdBy, err := s.resolver.ResolveUser(ctx, d.CreatedBy)
		if err != nil {
			return nil, err
		}
		merged.CreatedBy = createdBy
	}
	if d.IsApproved != nil {
		if err := s.applyApproval(ctx, merged, *d.IsApproved, d.ApprovedBy); err != nil {
			return nil, err
		}
	}

	if d.PendingUploads() > 0 {
		if err := s.normalizer.Upload(ctx, d); err != nil {
			return nil, err
		}
		d.applyTo(merged)
	}
	merged.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *Service) validatePatch(d *Draft, merged *Question) error {
	if d.touchesTitle() {
		if err := ValidateTitle(merged.Title); err != nil {
			return err
		}
	}
	if d.touchesOptions() {
		if err := ValidateOptions(merged.Options, ExactlyFour); err != nil {
			return err
		}
	}
	idx := &merged.CorrectAnswer
	if d.Has(keyCorrectAnswer) {
		idx = d.CorrectAnswer
	}
	if err := ValidateCorrectAnswer(idx, merged.Options); err != nil {
		return err
	}
	if d.Has(keyDifficulty) {
		return ValidateDifficulty(merged.Difficulty)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("question_id", id.String()).Info("question deleted")
	return nil
}

// ApprovalInput drives the approval toggle. A nil IsApproved flips the
// current state.
type ApprovalInput struct {
	IsApproved *bool  `json:"isApproved"`
	ApprovedBy string `json:"approvedBy"`
}

// SetApproval moves a question between pending and approved. A rejected
// transition leaves the stored question unchanged.
func (s *Service) SetApproval(ctx context.Context, id uuid.UUID, in ApprovalInput) (*Question, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	approve := !existing.IsApproved
	if in.IsApproved != nil {
		approve = *in.IsApproved
	}

	next := existing.clone()
	if err := s.applyApproval(ctx, next, approve, in.ApprovedBy); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, next); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"question_id": id.String(),
		"approved":    next.IsApproved,
	}).Info("question approval changed")
	return next, nil
}

// Import reads an uploaded CSV or XLSX file and reconciles its rows. Only a
// failure to read the file is returned as an error.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader, actor uuid.UUID) (*ImportReport, error) {
	rows, err := ReadRows(filename, r)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Reconcile(ctx, rows, actor), nil
}

// Export flattens every stored question.
func (s *Service) Export(ctx context.Context) (*ExportTable, error) {
	items, err := s.store.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]struct{})
	for _, q := range items {
		for _, id := range q.Categories {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	names, err := s.resolver.CategoryNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	return BuildExport(items, names), nil
}

func trimmedOptions(opts []MediaText) []MediaText {
	out := make([]MediaText, len(opts))
	for i, o := range opts {
		out[i] = o.trimmed()
	}
	return out
}

func countImages(q *Question) int {
	n := 0
	if q.Title.Image != "" {
		n++
	}
	for _, o := range q.Options {
		if o.Image != "" {
			n++
		}
	}
	if q.Explanation.Image != "" {
		n++
	}
	return n
}
