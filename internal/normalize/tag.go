package normalize

import (
	"strings"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
)

// Tag prefixes action with its interception source: "[source] action".
func Tag(source, action string) string {
	return "[" + source + "] " + action
}

// SplitTag inverts Tag. The source is the text between the first "[" and
// the first "]" after it, or broadcast.UnknownSource when there is no such
// span. The action is everything after the first "] ", or the whole input
// when that separator is missing.
func SplitTag(tagged string) (source, action string) {
	source = broadcast.UnknownSource
	if start := strings.Index(tagged, "["); start >= 0 {
		if end := strings.Index(tagged[start+1:], "]"); end >= 0 {
			source = tagged[start+1 : start+1+end]
		}
	}

	action = tagged
	if i := strings.Index(tagged, "] "); i >= 0 {
		action = tagged[i+2:]
	}
	return source, action
}
