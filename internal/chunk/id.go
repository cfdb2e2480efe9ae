// Package chunk derives stable identifiers for ingested document chunks.
//
// A chunk id is the correlation key between ingestion and retrieval: the
// uploader derives it from the source filename, and every later question
// against that document references the same id. The derivation is a pure
// function so the same filename always yields the same id.
package chunk

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ResolveID derives a chunk id from a source filename: lower-cased, with
// every run of whitespace collapsed to a single hyphen. Any input, including
// the empty string, produces an id; callers that have no filename should use
// TimeID instead. Two different documents sharing a filename collide on the
// same id and the later upload wins.
func ResolveID(filename string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(filename), "-")
}

// TimeID returns a fallback chunk id derived from the current time in
// milliseconds, for uploads that carry no filename.
func TimeID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
