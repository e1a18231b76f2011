// Package strings parses the comma-separated lists accepted in query
// strings and environment variables.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value, trims each element and drops
// empties and repeats. Order is preserved.
//
//	SplitList(" kafka-1:9092, ,kafka-2:9092,kafka-1:9092")
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(raw string) []string {
	return dedupe(strings.Split(raw, ","), strings.TrimSpace)
}

// SplitCodes is SplitList for enumerated codes, which are upper case.
//
//	SplitCodes("programme, termine,PROGRAMME")
//	// []string{"PROGRAMME", "TERMINE"}
func SplitCodes(raw string) []string {
	return dedupe(strings.Split(raw, ","), func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
