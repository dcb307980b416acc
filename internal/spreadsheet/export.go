// Package spreadsheet reads and writes xlsx workbooks for tests and results.
package spreadsheet

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/xuri/excelize/v2"
)

// ResultsSheet is the name of the sheet WriteResults produces.
const ResultsSheet = "Results"

var resultHeaders = []string{
	"Name", "Email", "School", "Score", "Correct", "Total", "Time Taken (s)", "Mode", "Submitted At",
}

// WriteResults renders a test's results as an xlsx workbook into w,
// one row per result under a bold header row.
func WriteResults(w io.Writer, test *model.Test, results []model.TestResultWithUser) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range resultHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ResultsSheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(resultHeaders))
	if err := f.SetCellStyle(ResultsSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range results {
		school := ""
		if r.User.School != nil {
			school = *r.User.School
		}
		values := []interface{}{
			r.User.Name,
			r.User.Email,
			school,
			r.Score,
			r.CorrectAnswers,
			r.TotalQuestions,
			r.TimeTaken,
			string(r.SubmissionMode),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(ResultsSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", i+2, err)
			}
		}
	}

	if err := f.SetColWidth(ResultsSheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: test.Title}); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}

	return f.Write(w)
}

// ExportFilename builds a download name for a test's results.
func ExportFilename(testID uuid.UUID) string {
	return fmt.Sprintf("results-%s.xlsx", testID)
}
