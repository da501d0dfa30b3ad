package nplusone

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shaffooo/nplusone/internal/stack"
)

// warningFormat is the rendered warning, one per distinct call site. The
// rendered text is also the deduplication identity: two resolutions that
// render identically are reported once.
const warningFormat = "*** Possible N+1 for model: %s, field: %s,\n" +
	"relationship: %s,\n" +
	"file: %s, \n" +
	"function: %s, line: %d, statement: %s"

// SuppressionMarker silences a call site when it appears at the end of the
// offending source line
const SuppressionMarker = "// NO-NPLUSONE"

// reportWarning attributes a detected lazy resolution to a call site and
// emits at most one warning for it per engine lifetime
func (e *Engine) reportWarning(model, field, relationship string) {
	frame, ok := matchFrame(stack.Capture(0), field)
	if !ok {
		// attribution failed; advisory tool, nothing to report
		return
	}

	if suppressed(frame.Statement) {
		return
	}

	msg := fmt.Sprintf(warningFormat, model, field, relationship,
		frame.File, frame.Function, frame.Line, frame.Statement)
	if !e.markReported(msg) {
		return
	}

	e.logger.Warn(msg)
}

// matchFrame walks frames oldest first and returns the first whose source
// statement contains field as a whole word. A field named "author" does
// not match a statement that only mentions "authors".
func matchFrame(frames []stack.Frame, field string) (stack.Frame, bool) {
	pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(field) + `\b`)
	for _, frame := range frames {
		if pattern.MatchString(frame.Statement) {
			return frame, true
		}
	}
	return stack.Frame{}, false
}

// suppressed reports whether the statement opts out of warnings via the
// trailing suppression marker
func suppressed(statement string) bool {
	return strings.HasSuffix(strings.TrimSpace(statement), SuppressionMarker)
}

// markReported records the rendered warning and reports whether it is new.
// The check-and-insert is atomic so concurrent resolutions of the same call
// site emit once. In the bounded store a re-sighted warning refreshes its
// recency, so eviction removes the least recently seen call site.
func (e *Engine) markReported(msg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tracked != nil {
		if _, seen := e.tracked.Get(msg); seen {
			return false
		}
		e.tracked.Add(msg, struct{}{})
		return true
	}

	if _, seen := e.reported[msg]; seen {
		return false
	}
	e.reported[msg] = struct{}{}
	return true
}
