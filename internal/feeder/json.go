package feeder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/torosent/apicontract/internal/endpoint"
)

// LoadJSON reads records from a file holding a JSON array of objects. Values
// are converted to their string form; nested values are kept as JSON.
func LoadJSON(path string) ([]endpoint.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array")
	}

	records := make([]endpoint.Record, 0, len(raw))
	for i, item := range raw {
		if len(item) == 0 {
			return nil, fmt.Errorf("record %d is empty", i)
		}
		record := make(endpoint.Record, len(item))
		for key, value := range item {
			record[key] = stringify(value)
		}
		records = append(records, record)
	}
	return records, nil
}

func stringify(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	if string(value) == "null" {
		return ""
	}
	return string(value)
}
