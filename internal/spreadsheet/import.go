package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/validator"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptySheet is returned when a workbook holds no question rows.
	ErrEmptySheet = errors.New("spreadsheet: no questions found")
	// ErrInvalidRow wraps every per-row problem.
	ErrInvalidRow = errors.New("spreadsheet: invalid question row")
	// ErrNotWorkbook is returned when the upload is not an xlsx file.
	ErrNotWorkbook = errors.New("spreadsheet: not an xlsx workbook")
)

// ReadQuestions parses the first sheet of an xlsx workbook into questions.
//
// Row 1 is a header and is skipped. In every following row column A is the
// question text, column B the correct option and columns C onwards the
// options. Rows with an empty column A are ignored. Cell text is taken as
// is; only surrounding whitespace of the question text is trimmed.
func ReadQuestions(r io.Reader) ([]model.QuestionInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var questions []model.QuestionInput
	for i, row := range rows {
		if i == 0 || len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		q := model.QuestionInput{QuestionText: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			q.CorrectOption = row[1]
		}
		for _, opt := range row[min(2, len(row)):] {
			if opt != "" {
				q.Options = append(q.Options, opt)
			}
		}

		if len(q.Options) < 2 {
			return nil, fmt.Errorf("%w: row %d needs at least two options", ErrInvalidRow, i+1)
		}
		if !q.HasOption(q.CorrectOption) {
			return nil, fmt.Errorf("%w: row %d correct option %q is not among the options", ErrInvalidRow, i+1, q.CorrectOption)
		}
		if fields := validator.Struct(&q); fields != nil {
			return nil, fmt.Errorf("%w: row %d: %s", ErrInvalidRow, i+1, joinFields(fields))
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, ErrEmptySheet
	}
	return questions, nil
}

func joinFields(fields map[string]string) string {
	msgs := make([]string, 0, len(fields))
	for _, msg := range fields {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
