package cmd

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	columnID = iota
	columnName
	columnEncoding
	columnMask
	columnTrials
	columnFailed
	columnTimedOut
	columnDiffs
)

var dashboardColumns = []string{"id", "name", "instr", "mask", "trials", "failed", "timed out", "diffs"}

// dashboard shows the case table filling up as trials finish, with the log below it
type dashboard struct {
	app     *tview.Application
	cases   *tview.Table
	status  *tview.TextView
	logs    *tview.TextView
	stopped atomic.Bool

	// table index -> row
	rows map[int]int
}

// newDashboard lays out one row per selected case of table
func newDashboard(table []harness.TestCase, selected []int) *dashboard {
	d := &dashboard{
		rows:   make(map[int]int, len(selected)),
		app:    tview.NewApplication(),
		cases:  tview.NewTable().SetFixed(1, 0).SetSelectable(true, false),
		status: tview.NewTextView().SetDynamicColors(true),
		logs:   tview.NewTextView().SetScrollable(true).SetMaxLines(1000),
	}

	for column, header := range dashboardColumns {
		d.cases.SetCell(0, column, tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}

	for i, index := range selected {
		tc := table[index]
		row := i + 1
		d.rows[index] = row

		mask := ""
		if tc.Mask != 0 {
			mask = fmt.Sprintf("0x%08x", tc.Mask)
		}

		d.cases.SetCell(row, columnID, tview.NewTableCell(fmt.Sprint(index)).SetAlign(tview.AlignRight))
		d.cases.SetCell(row, columnName, tview.NewTableCell(tc.Label).SetExpansion(1))
		d.cases.SetCell(row, columnEncoding, tview.NewTableCell(fmt.Sprintf("0x%08x", tc.Encoding)).SetTextColor(tcell.ColorFuchsia))
		d.cases.SetCell(row, columnMask, tview.NewTableCell(mask))

		for _, column := range []int{columnTrials, columnFailed, columnTimedOut, columnDiffs} {
			d.cases.SetCell(row, column, tview.NewTableCell("-").SetAlign(tview.AlignRight))
		}
	}

	d.cases.SetBorder(true).SetTitle(" cases ")
	d.status.SetBorder(true).SetTitle(" progress ")
	d.logs.SetBorder(true).SetTitle(" log ")
	d.status.SetText("starting")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.cases, 0, 2, true).
		AddItem(d.status, 3, 0, false).
		AddItem(d.logs, 0, 1, false)

	d.app.SetRoot(layout, true).SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			d.stop()
			return nil
		}

		return event
	})

	return d
}

func (d *dashboard) stop() {
	d.stopped.Store(true)
	d.app.Stop()
}

type caseCounters struct {
	index, run, total, failed, timedOut, diffs int
}

func countersOf(progress *harness.Progress) caseCounters {
	return caseCounters{
		index:    progress.Case.Index,
		run:      progress.Case.TrialsRun,
		total:    progress.Total,
		failed:   progress.Case.TrialsFailed,
		timedOut: progress.Case.TrialsTimedOut,
		diffs:    progress.Case.TotalDiffs,
	}
}

func (d *dashboard) updateRow(c caseCounters, color tcell.Color) {
	row, ok := d.rows[c.index]
	if !ok {
		return
	}

	d.cases.GetCell(row, columnTrials).SetText(fmt.Sprintf("%d/%d", c.run, c.total))
	d.cases.GetCell(row, columnFailed).SetText(fmt.Sprint(c.failed))
	d.cases.GetCell(row, columnTimedOut).SetText(fmt.Sprint(c.timedOut))
	d.cases.GetCell(row, columnDiffs).SetText(fmt.Sprint(c.diffs))

	for column := range dashboardColumns {
		if column != columnEncoding {
			d.cases.GetCell(row, column).SetTextColor(color)
		}
	}
}

// queue hands update to the application. It gives up once ctx is done, since a stopped
// application no longer drains its update queue.
func (d *dashboard) queue(ctx context.Context, update func()) bool {
	sent := make(chan struct{})

	go func() {
		d.app.QueueUpdateDraw(update)
		close(sent)
	}()

	select {
	case <-sent:
		return true
	case <-ctx.Done():
		return false
	}
}

func counterColor(c caseCounters) tcell.Color {
	switch {
	case c.timedOut > 0:
		return tcell.ColorYellow
	case c.failed > 0:
		return tcell.ColorRed
	default:
		return tcell.ColorGreen
	}
}

// observer updates the dashboard from the driver goroutine. The run stops once the dashboard is closed
func (d *dashboard) observer(ctx context.Context) harness.EventCallback {
	return func(event harness.Event, progress *harness.Progress) bool {
		if d.stopped.Load() || ctx.Err() != nil {
			return false
		}

		switch event {
		case harness.EventCaseStarted:
			label := progress.Case.Case.Label
			c := countersOf(progress)

			return d.queue(ctx, func() {
				d.status.SetText(fmt.Sprintf("running [yellow]%s[white], %d trials", tview.Escape(label), c.total))
				d.updateRow(c, tcell.ColorWhite)
				d.cases.Select(d.rows[c.index], 0)
			})
		case harness.EventTrialFinished:
			label := progress.Case.Case.Label
			trial := *progress.Trial
			c := countersOf(progress)

			return d.queue(ctx, func() {
				d.status.SetText(fmt.Sprintf("running [yellow]%s[white], trial %d/%d: candidate 0x%08x %s, %d diffs",
					tview.Escape(label), c.run, c.total, trial.Candidate, trial.Status, trial.DiffCount))
				d.updateRow(c, tcell.ColorWhite)
			})
		case harness.EventCaseFinished:
			c := countersOf(progress)

			return d.queue(ctx, func() {
				d.updateRow(c, counterColor(c))
			})
		}

		return true
	}
}

func (d *dashboard) finished(result *harness.Report, err error) {
	if err != nil {
		d.status.SetText(fmt.Sprintf("[red]%s[white], press q to exit", tview.Escape(err.Error())))
		return
	}

	run, failed, timedOut, diffs := result.Totals()
	d.status.SetText(fmt.Sprintf("finished: %d trials, %d failed, %d timed out, %d diffs. Press q to exit",
		run, failed, timedOut, diffs))
}

// Run runs the selected cases on the driver while the dashboard is shown. Closing the dashboard aborts the run
func (d *dashboard) Run(ctx context.Context, driver *harness.Driver, table []harness.TestCase, selected []int) (*harness.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	driver.OnEvent(d.observer(ctx))

	var result *harness.Report
	var runErr error
	done := make(chan struct{})

	go func() {
		defer close(done)

		result, runErr = driver.RunSelected(ctx, table, selected)

		if !d.stopped.Load() {
			d.queue(ctx, func() { d.finished(result, runErr) })
		}
	}()

	err := d.app.Run()
	d.stopped.Store(true)
	cancel()
	<-done

	if err != nil {
		return result, err
	}

	return result, runErr
}
