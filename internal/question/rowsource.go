package question

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"quizbank/internal/apperr"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFile = apperr.New(apperr.ErrValidation, "Only .csv and .xlsx files are supported")
	ErrNoFile          = apperr.New(apperr.ErrValidation, "No file uploaded")
	ErrUnreadableFile  = apperr.New(apperr.ErrMalformedPayload, "Uploaded file could not be parsed")
)

// Row is one data row keyed by header name.
type Row map[string]string

// ReadRows parses an uploaded CSV or XLSX file into rows keyed by the first
// line's headers. The format is picked from the file extension.
func ReadRows(filename string, r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Upstream("read upload", err)
	}

	var records [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = csvRecords(data)
	case ".xlsx", ".xlsm":
		records, err = xlsxRecords(data)
	default:
		return nil, ErrUnsupportedFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	return rowsFromRecords(records), nil
}

func csvRecords(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func xlsxRecords(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func rowsFromRecords(records [][]string) []Row {
	if len(records) == 0 {
		return []Row{}
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	out := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	return out
}

// headerKey folds a column name so "title_text", "titleText" and
// "Title Text" address the same column.
func headerKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
