package nl2sql

import (
	"regexp"
	"strings"
)

var (
	sqlBlockPattern = regexp.MustCompile("(?is)```sql\\b(.*?)```")
	anyBlockPattern = regexp.MustCompile("(?s)```(.*?)```")
)

// ExtractSQL returns the trimmed interior of the first sql-tagged fenced
// block, else of the first fenced block of any tag, else raw unchanged.
func ExtractSQL(raw string) string {
	if match := sqlBlockPattern.FindStringSubmatch(raw); match != nil {
		return strings.TrimSpace(match[1])
	}
	if match := anyBlockPattern.FindStringSubmatch(raw); match != nil {
		return strings.TrimSpace(match[1])
	}
	return raw
}
