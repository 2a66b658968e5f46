package util

import (
	"strings"
	"time"
)

// dateTokens are replaced longest first so "YYYY" never becomes "0606".
var dateTokens = []struct{ tpl, layout string }{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"hh", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// FormatDateTpl formats t using a template with placeholders
// YYYY, YY, MM, DD, hh, mm and ss.
//
//	FormatDateTpl(t, "memory_YYYYMMDD_hhmmss.json") // "memory_20231110_000000.json"
//	FormatDateTpl(t, "DD/MM/YYYY")                  // "10/11/2023"
//
// A zero time yields an empty string.
func FormatDateTpl(t time.Time, tpl string) string {
	if t.IsZero() {
		return ""
	}
	layout := tpl
	for _, tok := range dateTokens {
		layout = strings.ReplaceAll(layout, tok.tpl, tok.layout)
	}
	return t.Format(layout)
}
