// Package prompt builds the exact text fed to an agent process for a
// single task, and defines the literal markers the agent reports back
// through its output stream.
package prompt

import (
	"regexp"
	"strings"
)

const (
	// DoneMarker is printed by the agent when the assignment is complete.
	DoneMarker = "###TASK_COMPLETE###"

	// BlockedMarker is printed when the agent cannot proceed. It carries a
	// reason attribute: ###TASK_BLOCKED### reason="...".
	BlockedMarker = "###TASK_BLOCKED###"
)

// blockedReasonRe extracts the reason attribute. The value is everything
// up to the closing quote, verbatim.
var blockedReasonRe = regexp.MustCompile(BlockedMarker + `\s*reason="([^"]*)"`)

// IsDone reports whether a line contains the done marker.
func IsDone(line string) bool {
	return strings.Contains(line, DoneMarker)
}

// ParseBlocked extracts the blocked reason from a line. A blocked marker
// without a parseable reason attribute still counts as blocked, with an
// empty reason.
func ParseBlocked(line string) (reason string, ok bool) {
	if !strings.Contains(line, BlockedMarker) {
		return "", false
	}
	if m := blockedReasonRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", true
}
