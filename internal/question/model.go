package question

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OptionCount is the number of options a live question carries.
const OptionCount = 4

const DefaultDifficulty = 3

// MediaText is a text and image pair used for titles, options and explanations.
type MediaText struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// Empty reports whether neither text nor image is set.
func (m MediaText) Empty() bool {
	return strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.Image) == ""
}

func (m MediaText) trimmed() MediaText {
	return MediaText{Text: strings.TrimSpace(m.Text), Image: strings.TrimSpace(m.Image)}
}

type Question struct {
	ID            uuid.UUID   `json:"id"`
	Title         MediaText   `json:"title"`
	Options       []MediaText `json:"options"`
	CorrectAnswer int         `json:"correctAnswer"`
	Explanation   MediaText   `json:"explanation"`
	Categories    []uuid.UUID `json:"categories"`
	Tags          []string    `json:"tags"`
	Difficulty    int         `json:"difficulty"`
	CreatedBy     *uuid.UUID  `json:"createdBy"`
	IsApproved    bool        `json:"isApproved"`
	ApprovedBy    *uuid.UUID  `json:"approvedBy"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (q *Question) clone() *Question {
	c := *q
	c.Options = append([]MediaText(nil), q.Options...)
	c.Categories = append([]uuid.UUID(nil), q.Categories...)
	c.Tags = append([]string(nil), q.Tags...)
	if q.CreatedBy != nil {
		id := *q.CreatedBy
		c.CreatedBy = &id
	}
	if q.ApprovedBy != nil {
		id := *q.ApprovedBy
		c.ApprovedBy = &id
	}
	return &c
}

func (q *Question) candidate() Candidate {
	idx := q.CorrectAnswer
	return Candidate{
		Title:         q.Title,
		Options:       q.Options,
		CorrectAnswer: &idx,
		Difficulty:    q.Difficulty,
	}
}

// ListFilter narrows List. Zero values match everything; To is exclusive.
type ListFilter struct {
	CategoryID *uuid.UUID
	Tag        string
	From       *time.Time
	To         *time.Time
}
