package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/Manu343726/rspdiff/pkg/cases"
	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCases(t *testing.T) {
	table := cases.Builtin()

	all, err := selectCases(table, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, all)

	selected, err := selectCases(table, []string{"4", "0"})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 0}, selected)

	_, err = selectCases(table, []string{"5"})
	assert.Error(t, err)

	_, err = selectCases(table, []string{"eret"})
	assert.Error(t, err)
}

func TestDashboard(t *testing.T) {
	table := cases.Builtin()
	board := newDashboard(table, []int{4, 2})

	assert.Equal(t, 3, board.cases.GetRowCount())
	assert.Equal(t, "4", board.cases.GetCell(1, columnID).Text)
	assert.Equal(t, "0x01ffffc0", board.cases.GetCell(1, columnMask).Text)
	assert.Equal(t, "2", board.cases.GetCell(2, columnID).Text)
	assert.Equal(t, "0x34008888", board.cases.GetCell(2, columnEncoding).Text)

	result := harness.NewCaseResult(2, table[2])
	result.Accumulate(&harness.TrialResult{Status: harness.StatusTimedOut, Passed: true})
	progress := &harness.Progress{Case: result, Total: 1}

	counters := countersOf(progress)
	assert.Equal(t, caseCounters{index: 2, run: 1, total: 1, timedOut: 1}, counters)
	assert.Equal(t, tcell.ColorYellow, counterColor(counters))
	assert.Equal(t, tcell.ColorGreen, counterColor(caseCounters{run: 1}))
	assert.Equal(t, tcell.ColorRed, counterColor(caseCounters{run: 1, failed: 1}))

	board.updateRow(counters, counterColor(counters))
	assert.Equal(t, "1/1", board.cases.GetCell(2, columnTrials).Text, "rows follow the table index")
	assert.Equal(t, "1", board.cases.GetCell(2, columnTimedOut).Text)
	assert.Equal(t, "-", board.cases.GetCell(1, columnTrials).Text)

	board.updateRow(caseCounters{index: 0, run: 1, total: 1}, tcell.ColorGreen)
	assert.Equal(t, 3, board.cases.GetRowCount(), "unselected cases have no row")
}

func TestDashboardObserver(t *testing.T) {
	board := newDashboard(cases.Builtin(), []int{0, 1, 2})

	screen := tcell.NewSimulationScreen("")
	board.app.SetScreen(screen)

	stopped := make(chan error, 1)
	go func() { stopped <- board.app.Run() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := harness.NewCaseResult(1, cases.Builtin()[1])
	result.Accumulate(&harness.TrialResult{Status: harness.StatusBroke, Passed: false, DiffCount: 3})
	progress := &harness.Progress{Case: result, Total: 1}

	observer := board.observer(ctx)
	assert.True(t, observer(harness.EventCaseFinished, progress))
	assert.Equal(t, "3", board.cases.GetCell(2, columnDiffs).Text)

	board.stop()
	assert.False(t, observer(harness.EventTrialFinished, progress), "closing the dashboard aborts the run")

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard did not stop")
	}
}

func TestDashboardQueueGivesUp(t *testing.T) {
	board := newDashboard(cases.Builtin(), []int{0})
	ctx, cancel := context.WithCancel(context.Background())

	// The application is not running, so nothing ever drains the update
	queued := make(chan bool, 1)
	go func() { queued <- board.queue(ctx, func() {}) }()

	cancel()

	select {
	case ok := <-queued:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("queue blocked after the run was cancelled")
	}

	assert.False(t, board.observer(ctx)(harness.EventCaseStarted, &harness.Progress{
		Case: harness.NewCaseResult(0, cases.Builtin()[0]), Total: 1,
	}))
}
