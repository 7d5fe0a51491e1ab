// Package facts decides whether a chat message carries durable personal
// information worth remembering.
//
// A cue matches anywhere in the message, across word boundaries, so "call a
// taxi ambulance" is flagged because "taxi ambulance" contains "i am". Such
// false positives are accepted.
package facts

import "strings"

// Cues are the lowercase self-disclosure phrases that mark a message as important.
var Cues = []string{
	"my name is",
	"remember",
	"i like",
	"i am",
	"call me",
	"my age is",
	"i live in",
}

// IsImportant reports whether message contains any cue, ignoring case.
func IsImportant(message string) bool {
	lower := strings.ToLower(message)
	for _, cue := range Cues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}
