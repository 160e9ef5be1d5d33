// ui/ui.go
// Package ui renders the aggregated XDP counters, either as a single
// rewritten status line or as a tview dashboard with a system log pane.
package ui

import (
	"context"
	"fmt"
	"strings"

	"xdpstats/stats"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const MaxLines = 100 // keep the last 100 entries, exported

// ChannelWriter funnels log output into the System Log pane.
type ChannelWriter struct{ Ch chan string }

// Write implements the io.Writer interface for our channel.
func (w ChannelWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	w.Ch <- msg
	return len(p), nil
}

// Dashboard is a sink showing one pane per category above the system log.
type Dashboard struct {
	app      *tview.Application
	layout   *tview.Flex
	sysView  *tview.TextView
	counters [len(stats.Categories)]*tview.TextView
	printer  *message.Printer
	logCh    chan string
}

// NewDashboard builds the application and its layout. Log output written
// to LogWriter shows up in the System Log pane once Run is called.
func NewDashboard(ifaces []string) *Dashboard {
	app := tview.NewApplication()
	d := &Dashboard{
		app:     app,
		printer: message.NewPrinter(language.English),
		logCh:   make(chan string, MaxLines),
	}

	d.sysView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() { app.Draw() })
	d.sysView.SetBorder(true).SetTitle(fmt.Sprintf(" System Log (%s) ", strings.Join(ifaces, ",")))

	bottomFlex := tview.NewFlex().SetDirection(tview.FlexColumn)
	for i, col := range statusColumns {
		view := tview.NewTextView().
			SetTextAlign(tview.AlignCenter)
		view.SetBorder(true).SetTitle(" " + col.label + " ")
		d.counters[i] = view
		bottomFlex.AddItem(view, 0, 1, false)
	}

	d.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.sysView, 0, 1, false).
		AddItem(bottomFlex, 4, 1, false)

	d.setCounters(stats.Record{})
	return d
}

// LogWriter returns the writer feeding the System Log pane.
func (d *Dashboard) LogWriter() ChannelWriter { return ChannelWriter{Ch: d.logCh} }

func (d *Dashboard) formatCounter(pkts, byts uint64) string {
	return d.printer.Sprintf("%d pkts\n(%d B)", pkts, byts)
}

func (d *Dashboard) setCounters(r stats.Record) {
	for i, col := range statusColumns {
		pkts, byts := r.Get(col.cat)
		d.counters[i].SetText(d.formatCounter(pkts, byts))
	}
}

// Render queues a redraw of the counter panes.
func (d *Dashboard) Render(r stats.Record) error {
	d.app.QueueUpdateDraw(func() { d.setCounters(r) })
	return nil
}

// Run shows the dashboard until ctx is done. q, Esc and Ctrl-C call stop.
func (d *Dashboard) Run(ctx context.Context, stop context.CancelFunc) error {
	d.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
			stop()
			return nil
		}
		return ev
	})

	var lines []string
	go PumpTextview(ctx, d.app, d.sysView, d.logCh, &lines)
	go func() {
		<-ctx.Done()
		d.app.QueueUpdate(d.app.Stop)
	}()

	return d.app.SetRoot(d.layout, true).Run()
}

// PumpTextview reads lines from a channel and updates a tview.TextView, keeping only MaxLines.
func PumpTextview(ctx context.Context, app *tview.Application, view *tview.TextView, ch <-chan string, buffer *[]string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-ch:
			*buffer = append(*buffer, line)
			if len(*buffer) > MaxLines {
				*buffer = (*buffer)[1:]
			}
			text := strings.Join(*buffer, "\n")
			app.QueueUpdateDraw(func() {
				view.SetText(tview.Escape(text))
				view.ScrollToEnd()
			})
		}
	}
}
