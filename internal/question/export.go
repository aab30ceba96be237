package question

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"id",
	"title_text", "title_image",
	"option_0_text", "option_0_image",
	"option_1_text", "option_1_image",
	"option_2_text", "option_2_image",
	"option_3_text", "option_3_image",
	"correct_answer", "correct_answer_text",
	"explanation_text", "explanation_image",
	"categories", "tags", "difficulty",
	"created_by", "is_approved", "approved_by", "created_at",
}

// ExportTable is the flattened form of a set of questions, header first.
type ExportTable struct {
	Rows [][]string
}

// BuildExport flattens questions. names maps category ids to display names;
// ids without a name are written as the raw id.
func BuildExport(questions []Question, names map[uuid.UUID]string) *ExportTable {
	rows := make([][]string, 0, len(questions)+1)
	rows = append(rows, append([]string(nil), exportHeader...))
	for _, q := range questions {
		rows = append(rows, exportRow(q, names))
	}
	return &ExportTable{Rows: rows}
}

func exportRow(q Question, names map[uuid.UUID]string) []string {
	opts := make([]MediaText, OptionCount)
	copy(opts, q.Options)

	row := []string{q.ID.String(), q.Title.Text, q.Title.Image}
	for _, o := range opts {
		row = append(row, o.Text, o.Image)
	}

	cats := make([]string, 0, len(q.Categories))
	for _, id := range q.Categories {
		if name, ok := names[id]; ok {
			cats = append(cats, name)
		} else {
			cats = append(cats, id.String())
		}
	}

	row = append(row,
		strconv.Itoa(q.CorrectAnswer),
		correctAnswerText(q.Options, q.CorrectAnswer),
		q.Explanation.Text,
		q.Explanation.Image,
		strings.Join(cats, ", "),
		strings.Join(q.Tags, ", "),
		strconv.Itoa(q.Difficulty),
		uuidString(q.CreatedBy),
		strconv.FormatBool(q.IsApproved),
		uuidString(q.ApprovedBy),
		q.CreatedAt.UTC().Format(time.RFC3339),
	)
	return row
}

// correctAnswerText looks the answer up as a 0-based index and, when that
// slot is missing or has no text, retries it as 1-based. Older exports
// relied on the second reading, so both are kept.
func correctAnswerText(opts []MediaText, idx int) string {
	if idx >= 0 && idx < len(opts) && opts[idx].Text != "" {
		return opts[idx].Text
	}
	if j := idx - 1; j >= 0 && j < len(opts) {
		return opts[j].Text
	}
	return ""
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// WriteCSV writes every field quoted, doubling embedded quotes.
// encoding/csv only quotes fields that need it, so quoting is done here.
func (t *ExportTable) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, row := range t.Rows {
		for i, field := range row {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(quoteField(field)); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (t *ExportTable) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for r, row := range t.Rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	_ = f.SetColWidth(sheet, "A", "V", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("write excel: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
