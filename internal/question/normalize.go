package question

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"quizbank/internal/apperr"
	"quizbank/internal/media"
)

var (
	ErrInvalidCategoriesFormat = apperr.New(apperr.ErrMalformedPayload, "Invalid categories format")
	ErrInvalidTagsFormat       = apperr.New(apperr.ErrMalformedPayload, "Invalid tags format")
)

// Raw field names accepted from clients.
const (
	keyTitle           = "title"
	keyOptions         = "options"
	keyExplanation     = "explanation"
	keyCorrectAnswer   = "correctAnswer"
	keyDifficulty      = "difficulty"
	keyCategories      = "categories"
	keyTags            = "tags"
	keyCreatedBy       = "createdBy"
	keyIsApproved      = "isApproved"
	keyApprovedBy      = "approvedBy"
	keyTitleText       = "titleText"
	keyExplanationText = "explanationText"
	keyTitleImage      = "titleImage"
	keyExplanationImg  = "explanationImage"
)

const (
	folderTitle       = "questions/title"
	folderOptions     = "questions/options"
	folderExplanation = "questions/explanation"
)

func optionTextKey(i int) string  { return "optionText" + strconv.Itoa(i) }
func optionImageKey(i int) string { return "optionImage" + strconv.Itoa(i) }

// ImageFields lists the attachment keys the flat shape reads.
func ImageFields() []string {
	keys := []string{keyTitleImage}
	for i := 0; i < OptionCount; i++ {
		keys = append(keys, optionImageKey(i))
	}
	return append(keys, keyExplanationImg)
}

// RawInput is a decoded request body: a JSON object, or form fields where
// repeated keys arrive as []any.
type RawInput map[string]any

type Attachment struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Attachments maps an image field name to its uploaded file.
type Attachments map[string]Attachment

type slotKind int

const (
	slotTitle slotKind = iota
	slotOption
	slotExplanation
)

type slot struct {
	kind  slotKind
	index int
}

func (s slot) folder() string {
	switch s.kind {
	case slotTitle:
		return folderTitle
	case slotOption:
		return folderOptions
	default:
		return folderExplanation
	}
}

// mediaPatch records which parts of a MediaText the client supplied.
type mediaPatch struct {
	text  bool
	image bool
}

func (p mediaPatch) touched() bool { return p.text || p.image }

type pendingUpload struct {
	slot  slot
	field string
	file  Attachment
}

// Draft is the canonical form of a create or update request, before
// references are resolved.
type Draft struct {
	Title         MediaText
	Options       []MediaText
	Explanation   MediaText
	CorrectAnswer *int
	Difficulty    int
	Categories    []string
	Tags          []string
	CreatedBy     string
	IsApproved    *bool
	ApprovedBy    string

	structured     bool
	present        map[string]bool
	titleSet       mediaPatch
	optionSet      [OptionCount]mediaPatch
	explanationSet mediaPatch
	uploads        []pendingUpload
}

// Has reports whether the raw input carried key.
func (d *Draft) Has(key string) bool { return d.present[key] }

// Structured reports whether the input used the nested shape.
func (d *Draft) Structured() bool { return d.structured }

// PendingUploads is the number of attachments Upload will send.
func (d *Draft) PendingUploads() int { return len(d.uploads) }

// Decode turns raw input into a Draft. The nested shape is chosen only when
// title is an object; anything else is read as flat form fields. Decode
// performs no I/O; attachments are staged and sent by Normalizer.Upload.
func Decode(raw RawInput, files Attachments) (*Draft, error) {
	d := &Draft{Difficulty: DefaultDifficulty, present: make(map[string]bool, len(raw))}
	for k := range raw {
		d.present[k] = true
	}

	if title, ok := raw[keyTitle].(map[string]any); ok {
		d.structured = true
		d.Title = mediaFromAny(title)
		d.Options = []MediaText{}
		if list, ok := raw[keyOptions].([]any); ok {
			for _, item := range list {
				opt, _ := item.(map[string]any)
				d.Options = append(d.Options, mediaFromAny(opt))
			}
		}
		if expl, ok := raw[keyExplanation].(map[string]any); ok {
			d.Explanation = mediaFromAny(expl)
		}
	} else {
		d.decodeFlat(raw, files)
	}

	d.CorrectAnswer = parseLeadingInt(raw[keyCorrectAnswer])
	if n := parseLeadingInt(raw[keyDifficulty]); n != nil {
		d.Difficulty = *n
	}

	cats, err := coerceList(raw[keyCategories], ErrInvalidCategoriesFormat)
	if err != nil {
		return nil, err
	}
	d.Categories = cats

	tags, err := coerceList(raw[keyTags], ErrInvalidTagsFormat)
	if err != nil {
		return nil, err
	}
	d.Tags = cleanTags(tags)

	d.CreatedBy = scalarString(raw[keyCreatedBy])
	d.IsApproved = parseBool(raw[keyIsApproved])
	d.ApprovedBy = scalarString(raw[keyApprovedBy])
	return d, nil
}

func (d *Draft) decodeFlat(raw RawInput, files Attachments) {
	d.Title = MediaText{Text: scalarString(raw[keyTitleText])}
	d.titleSet.text = d.Has(keyTitleText)
	d.stage(slot{kind: slotTitle}, keyTitleImage, files)

	d.Options = make([]MediaText, OptionCount)
	for i := 0; i < OptionCount; i++ {
		key := optionTextKey(i)
		d.Options[i] = MediaText{Text: scalarString(raw[key])}
		d.optionSet[i].text = d.Has(key)
		d.stage(slot{kind: slotOption, index: i}, optionImageKey(i), files)
	}

	d.Explanation = MediaText{Text: scalarString(raw[keyExplanationText])}
	d.explanationSet.text = d.Has(keyExplanationText)
	d.stage(slot{kind: slotExplanation}, keyExplanationImg, files)
}

// stage queues an attachment and marks its slot as carrying an image so the
// draft validates before anything is sent.
func (d *Draft) stage(s slot, field string, files Attachments) {
	f, ok := files[field]
	if !ok || len(f.Data) == 0 {
		return
	}
	d.uploads = append(d.uploads, pendingUpload{slot: s, field: field, file: f})
	d.setImage(s, "pending:"+field)
}

func (d *Draft) setImage(s slot, url string) {
	switch s.kind {
	case slotTitle:
		d.Title.Image = url
		d.titleSet.image = true
	case slotOption:
		d.Options[s.index].Image = url
		d.optionSet[s.index].image = true
	case slotExplanation:
		d.Explanation.Image = url
		d.explanationSet.image = true
	}
}

func (d *Draft) candidate() Candidate {
	return Candidate{
		Title:         d.Title,
		Options:       d.Options,
		CorrectAnswer: d.CorrectAnswer,
		Difficulty:    d.Difficulty,
	}
}

func (d *Draft) touchesTitle() bool {
	if d.structured {
		return d.Has(keyTitle)
	}
	return d.titleSet.touched()
}

func (d *Draft) touchesOptions() bool {
	if d.structured {
		return d.Has(keyOptions)
	}
	for _, p := range d.optionSet {
		if p.touched() {
			return true
		}
	}
	return false
}

// applyTo merges the fields the draft carries into q. Uncarried fields keep
// their stored values.
func (d *Draft) applyTo(q *Question) {
	if d.structured {
		q.Title = d.Title
		if d.Has(keyOptions) {
			q.Options = append([]MediaText(nil), d.Options...)
		}
		if d.Has(keyExplanation) {
			q.Explanation = d.Explanation
		}
	} else {
		mergeMedia(&q.Title, d.Title, d.titleSet)
		for i := 0; i < OptionCount; i++ {
			if !d.optionSet[i].touched() {
				continue
			}
			for len(q.Options) <= i {
				q.Options = append(q.Options, MediaText{})
			}
			mergeMedia(&q.Options[i], d.Options[i], d.optionSet[i])
		}
		mergeMedia(&q.Explanation, d.Explanation, d.explanationSet)
	}
	if d.Has(keyCorrectAnswer) && d.CorrectAnswer != nil {
		q.CorrectAnswer = *d.CorrectAnswer
	}
	if d.Has(keyDifficulty) {
		q.Difficulty = d.Difficulty
	}
	if d.Has(keyTags) {
		q.Tags = append([]string{}, d.Tags...)
	}
}

func mergeMedia(dst *MediaText, src MediaText, set mediaPatch) {
	if set.text {
		dst.Text = strings.TrimSpace(src.Text)
	}
	if set.image {
		dst.Image = strings.TrimSpace(src.Image)
	}
}

// MediaStore hosts uploaded question images.
type MediaStore interface {
	Upload(ctx context.Context, obj media.Object) (string, error)
}

// Normalizer sends a draft's staged attachments to the media store.
type Normalizer struct {
	media MediaStore
}

func NewNormalizer(store MediaStore) *Normalizer {
	return &Normalizer{media: store}
}

// Upload sends attachments one at a time: title, options 0 to 3, then
// explanation. The first failure stops the rest.
func (n *Normalizer) Upload(ctx context.Context, d *Draft) error {
	for _, p := range d.uploads {
		url, err := n.media.Upload(ctx, media.Object{
			Data:        p.file.Data,
			Folder:      p.slot.folder(),
			Filename:    p.file.Filename,
			ContentType: p.file.ContentType,
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", p.field, err)
		}
		d.setImage(p.slot, url)
	}
	d.uploads = nil
	return nil
}

func mediaFromAny(m map[string]any) MediaText {
	if m == nil {
		return MediaText{}
	}
	return MediaText{Text: scalarString(m["text"]), Image: scalarString(m["image"])}
}

// parseLeadingInt reads a base-10 integer prefix ("3", " 2abc", "-1").
// Values without leading digits yield nil.
func parseLeadingInt(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		return &t
	case float64:
		return truncFloat(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return leadingInt(t.String())
		}
		return truncFloat(f)
	case string:
		return leadingInt(t)
	case []any:
		if len(t) == 0 {
			return nil
		}
		return parseLeadingInt(t[0])
	default:
		return nil
	}
}

func truncFloat(f float64) *int {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

func leadingInt(s string) *int {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return nil
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return nil
	}
	return &n
}

func parseBool(v any) *bool {
	var out bool
	switch t := v.(type) {
	case bool:
		out = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			out = true
		case "false", "0", "no", "off":
			out = false
		default:
			return nil
		}
	case []any:
		if len(t) == 0 {
			return nil
		}
		return parseBool(t[0])
	default:
		return nil
	}
	return &out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		if len(t) == 0 {
			return ""
		}
		return scalarString(t[0])
	default:
		return ""
	}
}

// coerceList accepts an array, a JSON-encoded string or a scalar and always
// returns a slice. Absent input yields nil.
func coerceList(v any, malformed error) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string{}, t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && looksLikeJSON(s) {
				nested, err := coerceList(s, malformed)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
				continue
			}
			out = append(out, scalarString(item))
		}
		return out, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return []string{}, nil
		}
		if !looksLikeJSON(s) {
			return []string{s}, nil
		}
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var parsed any
		if err := dec.Decode(&parsed); err != nil {
			return nil, malformed
		}
		if dec.More() {
			return nil, malformed
		}
		if list, ok := parsed.([]any); ok {
			out := make([]string, 0, len(list))
			for _, item := range list {
				out = append(out, scalarString(item))
			}
			return out, nil
		}
		return []string{scalarString(parsed)}, nil
	default:
		return []string{scalarString(t)}, nil
	}
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") || strings.HasPrefix(s, `"`)
}

func cleanTags(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
