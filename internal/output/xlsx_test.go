package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	summary := sampleSummary()

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, summary); err != nil {
		t.Fatalf("WriteXLSX error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(casesSheet)
	if err != nil {
		t.Fatalf("GetRows error = %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
	if rows[0][1] != "Case" || rows[0][len(xlsxHeaders)-1] != "Curl" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[2][1] != "create transfer invalid" || rows[2][6] != "failed" || rows[2][5] != "400" {
		t.Fatalf("unexpected failed row %v", rows[2])
	}
	if !strings.Contains(rows[2][11], "status: expected 400, got 201") {
		t.Fatalf("detail column missing mismatch: %q", rows[2][11])
	}

	passedStyle, _ := f.GetCellStyle(casesSheet, "B2")
	failedStyle, _ := f.GetCellStyle(casesSheet, "B3")
	if passedStyle == failedStyle {
		t.Fatalf("failed row should be styled differently from passed row")
	}

	summaryRows, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("summary sheet: %v", err)
	}
	if summaryRows[0][1] != "01HRUNID" || summaryRows[4][1] != "4" {
		t.Fatalf("unexpected summary rows %v", summaryRows)
	}
}
