package http

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeFilename keeps only the base name of an upload, limited to a
// conservative character set.
func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = unsafeFilename.ReplaceAllString(name, "_")
	if name == "." || name == ".." || name == "_" {
		return ""
	}
	return name
}

// exportFilename names a CSV download after the day it was produced.
func exportFilename(now time.Time) string {
	return fmt.Sprintf("transactions-%s.csv", now.Format(time.DateOnly))
}
