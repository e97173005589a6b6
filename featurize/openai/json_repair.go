package openai

import (
	"regexp"
	"strings"
)

var (
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)"?\s*:`)
)

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairJSON fixes formatting slips vision models commonly make:
// keys missing their quotes and trailing commas before a closing bracket.
func repairJSON(s string) string {
	s = bareKey.ReplaceAllString(s, `$1"$2":`)
	return trailingComma.ReplaceAllString(s, "$1")
}
