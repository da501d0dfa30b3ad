package nplusone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaffooo/nplusone/internal/stack"
)

func TestMatchFrameWholeWord(t *testing.T) {
	frames := []stack.Frame{
		{File: "a.go", Line: 10, Statement: `names := collectAuthors(db)`},
		{File: "b.go", Line: 20, Statement: `warn about authors here`},
		{File: "c.go", Line: 30, Statement: `a, err := post.Related(ctx, "author")`},
	}

	frame, ok := matchFrame(frames, "author")
	require.True(t, ok)
	assert.Equal(t, "c.go", frame.File, "substring matches in earlier frames must be skipped")
}

func TestMatchFrameOldestWins(t *testing.T) {
	frames := []stack.Frame{
		{File: "outer.go", Statement: `render(post.author)`},
		{File: "inner.go", Statement: `load(post.author)`},
	}

	frame, ok := matchFrame(frames, "author")
	require.True(t, ok)
	assert.Equal(t, "outer.go", frame.File)
}

func TestMatchFrameNoMatch(t *testing.T) {
	frames := []stack.Frame{
		{Statement: `authors := loadAll(db)`},
		{Statement: `fmt.Println(authors)`},
	}

	_, ok := matchFrame(frames, "author")
	assert.False(t, ok)
}

func TestMatchFrameEscapesField(t *testing.T) {
	frames := []stack.Frame{{Statement: `x := m["a.b"]`}}

	// a field containing regexp metacharacters must be matched literally
	_, ok := matchFrame(frames, "a.b")
	assert.True(t, ok)
	_, ok = matchFrame(frames, "aXb")
	assert.False(t, ok)
}

func TestSuppressed(t *testing.T) {
	assert.True(t, suppressed(`v, _ := post.Related(ctx, "author") // NO-NPLUSONE`))
	assert.True(t, suppressed("  v := load()\t// NO-NPLUSONE  "))
	assert.False(t, suppressed(`v, _ := post.Related(ctx, "author")`))
	assert.False(t, suppressed(`// NO-NPLUSONE comes first, not last`))
}

func TestMarkReportedDeduplicates(t *testing.T) {
	e := newEngine()

	assert.True(t, e.markReported("warning one"))
	assert.False(t, e.markReported("warning one"))
	assert.True(t, e.markReported("warning two"))
}

func TestMarkReportedBounded(t *testing.T) {
	e := newEngine(WithMaxTracked(2))

	assert.True(t, e.markReported("w1"))
	assert.True(t, e.markReported("w2"))
	// re-sighting w1 refreshes it, leaving w2 the least recently seen
	assert.False(t, e.markReported("w1"))

	// w3 evicts w2, not the refreshed w1
	assert.True(t, e.markReported("w3"))
	assert.False(t, e.markReported("w1"))
	assert.True(t, e.markReported("w2"))
}
