package question

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quizbank/internal/app/apiresp"
	"quizbank/internal/apperr"
	"quizbank/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxImageBytes  = 5 << 20
	maxFormBytes   = 6*maxImageBytes + 1<<20
	maxImportBytes = 20 << 20
)

var (
	ErrImageTooLarge   = apperr.New(apperr.ErrValidation, "File too large")
	ErrImageType       = apperr.New(apperr.ErrValidation, "Only image files are allowed")
	ErrInvalidBody     = apperr.New(apperr.ErrMalformedPayload, "invalid request body")
	ErrDateRange       = apperr.New(apperr.ErrValidation, "startDate and endDate are required")
	ErrDateFormat      = apperr.New(apperr.ErrValidation, "dates must be YYYY-MM-DD or RFC3339")
	ErrDateRangeInvert = apperr.New(apperr.ErrValidation, "startDate must not be after endDate")
)

type Handler struct {
	svc questionService
}

type questionService interface {
	Create(ctx context.Context, raw RawInput, files Attachments) (*Question, error)
	Get(ctx context.Context, id uuid.UUID) (*Question, error)
	List(ctx context.Context, f ListFilter) ([]Question, error)
	ListByTag(ctx context.Context, tag string) ([]Question, error)
	Update(ctx context.Context, id uuid.UUID, raw RawInput, files Attachments) (*Question, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetApproval(ctx context.Context, id uuid.UUID, in ApprovalInput) (*Question, error)
	Import(ctx context.Context, filename string, r io.Reader, actor uuid.UUID) (*ImportReport, error)
	Export(ctx context.Context) (*ExportTable, error)
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	raw, files, ok := readInput(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Create(r.Context(), raw, files)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, q)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var f ListFilter
	if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			apiresp.WriteError(w, r, http.StatusBadRequest, "invalid category id")
			return
		}
		f.CategoryID = &id
	}
	f.Tag = strings.TrimSpace(r.URL.Query().Get("tag"))
	h.writeList(w, r, f)
}

func (h *Handler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "categoryId"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusNotFound, "Category not found")
		return
	}
	h.writeList(w, r, ListFilter{CategoryID: &id})
}

func (h *Handler) ListByTag(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

// FilterByDate lists questions created between startDate and endDate. A
// date-only endDate includes that whole day.
func (h *Handler) FilterByDate(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r.URL.Query())
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	h.writeList(w, r, ListFilter{From: &from, To: &to})
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, f ListFilter) {
	items, err := h.svc.List(r.Context(), f)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, q)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}
	raw, files, ok := readInput(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Update(r.Context(), id, raw, files)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, q)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"message": "Question deleted successfully"})
}

func (h *Handler) SetApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(w, r)
	if !ok {
		return
	}
	var in ApprovalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := h.svc.SetApproval(r.Context(), id, in)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, q)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeBodyError(w, r, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apiresp.WriteServiceError(w, r, ErrNoFile)
		return
	}
	defer file.Close()

	report, err := h.svc.Import(r.Context(), header.Filename, file, auth.ActorID(r.Context()))
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, report)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.Export(r.Context())
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	contentType, filename := "text/csv; charset=utf-8", "questions.csv"
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "questions.xlsx"
		err = table.WriteXLSX(&buf)
	} else {
		err = table.WriteCSV(&buf)
	}
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// readInput decodes the body by content type: multipart forms with image
// attachments, urlencoded forms, or a JSON object.
func readInput(w http.ResponseWriter, r *http.Request) (RawInput, Attachments, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			writeBodyError(w, r, err)
			return nil, nil, false
		}
		files, err := readAttachments(r)
		if err != nil {
			apiresp.WriteServiceError(w, r, err)
			return nil, nil, false
		}
		return formInput(r.MultipartForm.Value), files, true
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			writeBodyError(w, r, err)
			return nil, nil, false
		}
		return formInput(r.PostForm), Attachments{}, true
	default:
		raw := RawInput{}
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			writeBodyError(w, r, err)
			return nil, nil, false
		}
		return raw, Attachments{}, true
	}
}

func formInput(values url.Values) RawInput {
	raw := make(RawInput, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			raw[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			raw[k] = list
		}
	}
	return raw
}

func readAttachments(r *http.Request) (Attachments, error) {
	out := Attachments{}
	if r.MultipartForm == nil {
		return out, nil
	}
	for _, field := range ImageFields() {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		if fh.Size > maxImageBytes {
			return nil, ErrImageTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperr.Upstream("open attachment", err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, apperr.Upstream("read attachment", err)
		}
		if len(data) > maxImageBytes {
			return nil, ErrImageTooLarge
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		if !strings.HasPrefix(contentType, "image/") {
			return nil, ErrImageType
		}
		out[field] = Attachment{Data: data, Filename: fh.Filename, ContentType: contentType}
	}
	return out, nil
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		apiresp.WriteError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	apiresp.WriteServiceError(w, r, ErrInvalidBody)
}

func questionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteServiceError(w, r, ErrQuestionNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func parseDateRange(q url.Values) (time.Time, time.Time, error) {
	startRaw := strings.TrimSpace(q.Get("startDate"))
	endRaw := strings.TrimSpace(q.Get("endDate"))
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, ErrDateRange
	}
	from, _, err := parseDate(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, dateOnly, err := parseDate(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateOnly {
		to = to.Add(24 * time.Hour)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, ErrDateRangeInvert
	}
	return from, to, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, ErrDateFormat
}
