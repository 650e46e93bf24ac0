// Package feeder loads data records that expand one declared case into many.
package feeder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/torosent/apicontract/internal/endpoint"
)

// Type selects the file format of a feeder.
type Type string

const (
	TypeCSV  Type = "csv"
	TypeJSON Type = "json"
)

// Load reads every record of the file. An empty type is inferred from the
// file extension.
func Load(path string, typ Type) ([]endpoint.Record, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("feeder path is required")
	}
	if typ == "" {
		typ = inferType(path)
	}
	switch Type(strings.ToLower(string(typ))) {
	case TypeCSV:
		return LoadCSV(path)
	case TypeJSON:
		return LoadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported feeder type %q: use csv or json", typ)
	}
}

func inferType(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return TypeCSV
	case ".json":
		return TypeJSON
	}
	return ""
}
