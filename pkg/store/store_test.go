package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive(t *testing.T) {
	archive, err := Open("")
	require.NoError(t, err)
	defer archive.Close()

	tc := harness.TestCase{Label: "li $1, 0x8888", Encoding: 0x34018888}

	for i := 0; i < 3; i++ {
		trial := &harness.TrialResult{
			Index:     i,
			Seed:      uint32(100 + i),
			Candidate: tc.Encoding,
			Status:    harness.StatusBroke,
			Elapsed:   time.Millisecond,
			DiffCount: i,
			Passed:    i == 0,
		}
		require.NoError(t, archive.PutTrial(2, tc, trial))
	}

	record, err := archive.GetTrial(2, 1)
	require.NoError(t, err)
	assert.Equal(t, tc, record.Case)
	assert.Equal(t, uint32(101), record.Trial.Seed)
	assert.Equal(t, harness.StatusBroke, record.Trial.Status)

	_, err = archive.GetTrial(2, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	records, err := archive.Trials(2)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, record := range records {
		assert.Equal(t, i, record.Trial.Index)
	}

	none, err := archive.Trials(20)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestObserver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")

	archive, err := Open(path)
	require.NoError(t, err)

	result := harness.NewCaseResult(0, harness.TestCase{Label: "nop"})
	trial := &harness.TrialResult{Index: 0, Seed: 7, Status: harness.StatusTimedOut}
	result.Accumulate(trial)

	observer := archive.Observer(func(err error) { t.Error(err) })
	assert.True(t, observer(harness.EventTrialFinished, &harness.Progress{Case: result, Trial: trial}))
	assert.True(t, observer(harness.EventCaseFinished, &harness.Progress{Case: result}))
	require.NoError(t, archive.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	record, err := reopened.GetTrial(0, 0)
	require.NoError(t, err)
	assert.Equal(t, harness.StatusTimedOut, record.Trial.Status)

	summaries, err := reopened.Cases()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].TrialsTimedOut)
	assert.Empty(t, summaries[0].Trials)
}
