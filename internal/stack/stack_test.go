package stack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureIncludesCallerStatement(t *testing.T) {
	frames := Capture(0)
	require.NotEmpty(t, frames)

	var caller *Frame
	for i := range frames {
		if strings.HasSuffix(frames[i].Function, "TestCaptureIncludesCallerStatement") {
			caller = &frames[i]
			break
		}
	}
	require.NotNil(t, caller, "expected a frame for the test function")

	assert.Contains(t, caller.File, "stack_test.go")
	assert.Contains(t, caller.Statement, "Capture(0)")
	assert.Greater(t, caller.Line, 0)
}

func TestCaptureOldestFirst(t *testing.T) {
	var frames []Frame
	func() {
		frames = Capture(0)
	}()

	outer, inner := -1, -1
	for i, f := range frames {
		if strings.HasSuffix(f.Function, "TestCaptureOldestFirst") {
			outer = i
		}
		if strings.HasSuffix(f.Function, "TestCaptureOldestFirst.func1") {
			inner = i
		}
	}

	require.GreaterOrEqual(t, outer, 0)
	require.GreaterOrEqual(t, inner, 0)
	assert.Less(t, outer, inner, "callers must precede callees")
}

func TestCaptureDeepStacks(t *testing.T) {
	var deep func(n int) []Frame
	deep = func(n int) []Frame {
		if n == 0 {
			return Capture(0)
		}
		return deep(n - 1)
	}

	frames := deep(100)
	require.Greater(t, len(frames), 100)

	found := false
	for _, f := range frames {
		if strings.HasSuffix(f.Function, "TestCaptureDeepStacks") {
			found = true
			break
		}
	}
	assert.True(t, found, "oldest frames must survive stacks deeper than the initial buffer")
}

func TestCaptureSkip(t *testing.T) {
	full := Capture(0)
	skipped := Capture(1)

	require.NotEmpty(t, full)
	for _, f := range skipped {
		assert.NotContains(t, f.Function, "TestCaptureSkip")
	}
}

func TestStatementAtOutOfRange(t *testing.T) {
	frames := Capture(0)
	require.NotEmpty(t, frames)
	file := frames[len(frames)-1].File

	assert.Equal(t, "", statementAt(file, 0))
	assert.Equal(t, "", statementAt(file, 1<<20))
}

func TestStatementAtUnreadableFile(t *testing.T) {
	assert.Equal(t, "", statementAt("/nonexistent/source.go", 3))
	// cached failure path
	assert.Equal(t, "", statementAt("/nonexistent/source.go", 3))
}
