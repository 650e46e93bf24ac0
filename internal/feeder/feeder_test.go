package feeder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "accounts.csv", `account_id, currency
acc-1,EUR
acc-2,USD`)

	records, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(records))
	}
	if records[0]["account_id"] != "acc-1" || records[0]["currency"] != "EUR" {
		t.Errorf("first record = %v", records[0])
	}
	if records[1]["account_id"] != "acc-2" || records[1]["currency"] != "USD" {
		t.Errorf("second record = %v", records[1])
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"header only", "a,b\n", "at least one header row"},
		{"ragged row", "a,b\n1,2\n3\n", "wrong number of fields"},
		{"empty header", "a,\n1,2\n", "column 2 is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "data.csv", tt.content)
			_, err := LoadCSV(path)
			if err == nil {
				t.Fatalf("LoadCSV() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadCSV() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "transfers.json", `[
		{"amount": 10, "note": "rent", "meta": {"k": "v"}, "missing": null},
		{"amount": 20.5, "note": "food", "flag": true}
	]`)

	records, err := Load(path, TypeJSON)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(records))
	}
	if got := records[0]["amount"]; got != "10" {
		t.Errorf("amount = %q, want 10", got)
	}
	if got := records[0]["note"]; got != "rent" {
		t.Errorf("note = %q, want rent", got)
	}
	if got := records[0]["meta"]; got != `{"k": "v"}` {
		t.Errorf("meta = %q", got)
	}
	if got := records[0]["missing"]; got != "" {
		t.Errorf("missing = %q, want empty", got)
	}
	if got := records[1]["flag"]; got != "true" {
		t.Errorf("flag = %q, want true", got)
	}
}

func TestLoadJSONErrors(t *testing.T) {
	if _, err := LoadJSON(writeFile(t, "empty.json", `[]`)); err == nil {
		t.Errorf("expected error for empty array")
	}
	if _, err := LoadJSON(writeFile(t, "obj.json", `{"a":1}`)); err == nil {
		t.Errorf("expected error for non-array document")
	}
	if _, err := LoadJSON(writeFile(t, "blank.json", `[{}]`)); err == nil {
		t.Errorf("expected error for empty record")
	}
}

func TestLoadTypeSelection(t *testing.T) {
	if _, err := Load("", TypeCSV); err == nil {
		t.Errorf("expected error for empty path")
	}
	if _, err := Load(writeFile(t, "data.txt", "a\n1\n"), ""); err == nil {
		t.Errorf("expected error when type cannot be inferred")
	}
	records, err := Load(writeFile(t, "data.txt", "a\n1\n"), "CSV")
	if err != nil {
		t.Fatalf("Load() with explicit type error = %v", err)
	}
	if len(records) != 1 || records[0]["a"] != "1" {
		t.Errorf("records = %v", records)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.csv"), ""); err == nil {
		t.Errorf("expected error for missing file")
	}
}
