package util

import "strings"

// SanitizePostgresText drops NUL bytes and invalid UTF-8, which Postgres
// text columns reject. Scraped pages occasionally contain both.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}
	return strings.ReplaceAll(strings.ToValidUTF8(value, ""), "\x00", "")
}

// SanitizePostgresJSON applies SanitizePostgresText to every string inside
// a decoded JSON value destined for a jsonb column.
func SanitizePostgresJSON(value any) any {
	switch v := value.(type) {
	case string:
		return SanitizePostgresText(v)
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = SanitizePostgresText(s)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = SanitizePostgresJSON(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[SanitizePostgresText(k)] = SanitizePostgresJSON(item)
		}
		return out
	default:
		return value
	}
}
