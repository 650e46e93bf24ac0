package metrics

import (
	"sort"
	"strconv"
)

// StatusBucket is the failed-case count for a method/status pair.
type StatusBucket struct {
	Method string `json:"method"`
	Code   string `json:"code"`
	Count  int    `json:"count"`
}

// FlattenStatusBuckets converts a nested method->status map into a sorted slice of StatusBucket rows.
// Rows are sorted by descending count, then by method/code for stability.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for method, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Method: method, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Method == rows[j].Method {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Method < rows[j].Method
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

func itoa(code int) string {
	return strconv.Itoa(code)
}
