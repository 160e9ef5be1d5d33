package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"xdpstats/stats"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = stats.Record{
	PassPkt: 1, PassByt: 74,
	DropPkt: 2, DropByt: 200,
	BadPkt: 3, BadByt: 60,
	MatchPkt: 4, MatchByt: 6000,
	FwdPkt: 5, FwdByt: 500,
}

func TestFormatStatusPlain(t *testing.T) {
	got := FormatStatus(sample, false)
	assert.Equal(t, "Passed: 1/74  |  Dropped: 2/200  |  Bad: 3/60  |  Matched: 4/6000  |  Forwarded: 5/500", got)
	assert.Equal(t,
		"Passed: 0/0  |  Dropped: 0/0  |  Bad: 0/0  |  Matched: 0/0  |  Forwarded: 0/0",
		FormatStatus(stats.Record{}, false))
}

func TestFormatStatusColor(t *testing.T) {
	got := FormatStatus(sample, true)
	assert.True(t, strings.HasPrefix(got, "\x1b[1;32mPassed:\x1b[0m 1/74  |  "))
	assert.Contains(t, got, "\x1b[1;35mForwarded:\x1b[0m 5/500")
}

func TestStatusLineRewritesLine(t *testing.T) {
	var out bytes.Buffer
	s := NewStatusLine(&out, false)

	require.NoError(t, s.Render(stats.Record{PassPkt: 1, PassByt: 60}))
	// Flushed on every render.
	assert.Equal(t, "\r"+FormatStatus(stats.Record{PassPkt: 1, PassByt: 60}, false), out.String())

	require.NoError(t, s.Render(sample))
	require.NoError(t, s.Finish())

	parts := strings.Split(out.String(), "\r")
	require.Len(t, parts, 3)
	assert.Equal(t, FormatStatus(sample, false)+"\n", parts[2])
}

func TestChannelWriterTrimsNewline(t *testing.T) {
	ch := make(chan string, 1)
	n, err := ChannelWriter{Ch: ch}.Write([]byte("level=info msg=hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 21, n)
	assert.Equal(t, "level=info msg=hello", <-ch)
}

func TestDashboardCounters(t *testing.T) {
	d := NewDashboard([]string{"eth0"})
	d.setCounters(stats.Record{MatchPkt: 1234567, MatchByt: 9876543210})

	assert.Equal(t, "1,234,567 pkts\n(9,876,543,210 B)", d.counters[3].GetText(true))
	assert.Equal(t, "0 pkts\n(0 B)", d.counters[0].GetText(true))
	assert.Equal(t, " Matched ", d.counters[3].GetTitle())
}

func TestDashboardStopsOnCancel(t *testing.T) {
	d := NewDashboard([]string{"eth0"})
	screen := tcell.NewSimulationScreen("UTF-8")
	d.app.SetScreen(screen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, cancel) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard did not stop")
	}
}
