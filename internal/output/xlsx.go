package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/torosent/apicontract/internal/result"
)

const (
	casesSheet   = "Cases"
	summarySheet = "Summary"

	errorBgColor   = "FF5900"
	warningBgColor = "FFEB9C"

	// Passed cases slower than this are highlighted.
	slowCaseThresholdMs = 300
)

var xlsxHeaders = []string{
	"#", "Case", "Method", "Path", "URL", "Expected", "Outcome",
	"Kind", "Status", "Duration (ms)", "Attempts", "Detail", "Curl",
}

var xlsxWidths = map[string]float64{"B": 32, "D": 28, "E": 40, "F": 24, "L": 60, "M": 60}

// WriteXLSX writes one row per case; non-passing rows are filled red and slow
// passing rows yellow.
func WriteXLSX(w io.Writer, summary result.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", casesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	errorStyle, err := fillStyle(f, errorBgColor)
	if err != nil {
		return err
	}
	warningStyle, err := fillStyle(f, warningBgColor)
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(casesSheet, "A1", &xlsxHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(xlsxHeaders))
	if err := f.SetCellStyle(casesSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for col, width := range xlsxWidths {
		if err := f.SetColWidth(casesSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for i, r := range summary.Results {
		row := i + 2
		cells := []interface{}{
			i + 1,
			r.Case,
			r.Method,
			r.Path,
			r.URL,
			r.Expected,
			string(r.Outcome),
			string(r.Kind),
			r.Status,
			r.DurationMs,
			r.Attempts,
			strings.Join(detailLines(r), "\n"),
			r.Curl,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(cells), row)
		if err := f.SetSheetRow(casesSheet, start, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		switch {
		case !r.Passed():
			err = f.SetCellStyle(casesSheet, start, end, errorStyle)
		case r.DurationMs > slowCaseThresholdMs:
			err = f.SetCellStyle(casesSheet, start, end, warningStyle)
		}
		if err != nil {
			return fmt.Errorf("style row %d: %w", row, err)
		}
	}

	if err := writeXLSXSummary(f, summary); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeXLSXSummary(f *excelize.File, summary result.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Run", summary.RunID},
		{"Base URL", summary.BaseURL},
		{"Started", summary.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration (ms)", summary.DurationMs},
		{"Total", summary.Total},
		{"Passed", summary.Passed},
		{"Failed", summary.Failed},
		{"Setup errors", summary.SetupErrors},
		{"Skipped", summary.Skipped},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

func fillStyle(f *excelize.File, rgb string) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{rgb}},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	return style, nil
}

func detailLines(r result.TestResult) []string {
	if r.Outcome == result.Failed && r.Kind == result.KindAssertionFailure {
		lines := make([]string, 0, len(r.Mismatches))
		for _, m := range r.Mismatches {
			lines = append(lines, m.String())
		}
		return lines
	}
	if d := r.Detail(); d != "" {
		return []string{d}
	}
	return nil
}
