// ui/status.go
package ui

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"

	"xdpstats/stats"
)

const (
	colorReset = "\x1b[0m"
	separator  = "  |  "
)

// Label and bold color per category, in display order.
var statusColumns = [...]struct {
	cat   stats.Category
	label string
	color string
}{
	{stats.Pass, "Passed", "\x1b[1;32m"},
	{stats.Drop, "Dropped", "\x1b[1;31m"},
	{stats.Bad, "Bad", "\x1b[1;33m"},
	{stats.Match, "Matched", "\x1b[1;34m"},
	{stats.Fwd, "Forwarded", "\x1b[1;35m"},
}

// pool holds reusable *bytes.Buffer instances
var bufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// FormatStatus renders the totals as
// "Passed: p/b  |  Dropped: p/b  |  Bad: p/b  |  Matched: p/b  |  Forwarded: p/b",
// with each label in bold color when color is set.
func FormatStatus(r stats.Record, color bool) string {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	var num [20]byte
	for i, col := range statusColumns {
		if i > 0 {
			buf.WriteString(separator)
		}
		if color {
			buf.WriteString(col.color)
		}
		buf.WriteString(col.label)
		buf.WriteByte(':')
		if color {
			buf.WriteString(colorReset)
		}
		buf.WriteByte(' ')
		pkts, byts := r.Get(col.cat)
		buf.Write(strconv.AppendUint(num[:0], pkts, 10))
		buf.WriteByte('/')
		buf.Write(strconv.AppendUint(num[:0], byts, 10))
	}
	return buf.String()
}

// StatusLine is a sink that rewrites a single terminal line per render.
type StatusLine struct {
	mu    sync.Mutex
	w     *bufio.Writer
	color bool
}

// NewStatusLine writes to w, coloring labels when color is set.
func NewStatusLine(w io.Writer, color bool) *StatusLine {
	return &StatusLine{w: bufio.NewWriter(w), color: color}
}

// Render overwrites the current line with the totals and flushes.
func (s *StatusLine) Render(r stats.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.WriteByte('\r')
	s.w.WriteString(FormatStatus(r, s.color))
	return s.w.Flush()
}

// Finish ends the line so the shell prompt starts on a fresh one.
func (s *StatusLine) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.WriteByte('\n')
	return s.w.Flush()
}
