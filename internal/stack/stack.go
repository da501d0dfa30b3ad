// Package stack captures the active call stack together with the source
// statement at each frame. Statement text is read from the source files on
// disk, which are present in the development environments this tool is
// meant for; frames whose source cannot be read carry an empty statement.
package stack

import (
	"os"
	"runtime"
	"strings"
	"sync"
)

// Frame is one call-stack entry with its source statement
type Frame struct {
	File      string
	Line      int
	Function  string
	Statement string
}

// Capture returns the calling goroutine's stack oldest frame first, the
// same order a developer reads a traceback top to bottom. skip counts
// additional frames to drop beyond Capture itself.
func Capture(skip int) []Frame {
	// +2 skips runtime.Callers and Capture. A full buffer may mean the
	// oldest frames were truncated, so grow until the stack fits.
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	for n == len(pcs) {
		pcs = make([]uintptr, len(pcs)*2)
		n = runtime.Callers(skip+2, pcs)
	}
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	var collected []Frame
	for {
		fr, more := frames.Next()
		if fr.File != "" {
			collected = append(collected, Frame{
				File:      fr.File,
				Line:      fr.Line,
				Function:  fr.Function,
				Statement: statementAt(fr.File, fr.Line),
			})
		}
		if !more {
			break
		}
	}

	// runtime.CallersFrames yields newest first; reverse to oldest first
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected
}

var sourceCache = struct {
	mu    sync.RWMutex
	lines map[string][]string
}{lines: make(map[string][]string)}

// statementAt returns the trimmed source line at file:line, or "" when the
// file cannot be read
func statementAt(file string, line int) string {
	lines, ok := cachedLines(file)
	if !ok {
		lines = loadLines(file)
	}
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}

func cachedLines(file string) ([]string, bool) {
	sourceCache.mu.RLock()
	defer sourceCache.mu.RUnlock()
	lines, ok := sourceCache.lines[file]
	return lines, ok
}

func loadLines(file string) []string {
	var lines []string
	if data, err := os.ReadFile(file); err == nil {
		lines = strings.Split(string(data), "\n")
	}
	// cache failures too so unreadable files are only attempted once
	sourceCache.mu.Lock()
	sourceCache.lines[file] = lines
	sourceCache.mu.Unlock()
	return lines
}
