package tools

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/store"
	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestFrames(t *testing.T) {
	frame, err := SnapshotFrame()
	require.NoError(t, err)
	for _, space := range rsp.Spaces {
		assert.Contains(t, frame, " "+space.String()+" ")
	}
	assert.Contains(t, frame, "4096 bytes")

	table := harness.NewFieldTable(harness.DefaultIgnoreList())

	cop0, err := ClassFrame(table, harness.ClassCOP0)
	require.NoError(t, err)
	assert.Contains(t, cop0, "cop0[SEMAPHORE]*")
	assert.Contains(t, cop0, "cop0[SP_STATUS]")
	assert.NotContains(t, cop0, "cop0[SP_STATUS]*")

	_, err = ClassFrame(table, "fpu")
	assert.Error(t, err)
}

func TestReproduced(t *testing.T) {
	archived := &harness.TrialResult{Status: harness.StatusBroke, DiffCount: 2, IgnoredCount: 1}

	assert.True(t, Reproduced(archived, &harness.TrialResult{Status: harness.StatusBroke, DiffCount: 2, IgnoredCount: 1}))
	assert.False(t, Reproduced(archived, &harness.TrialResult{Status: harness.StatusTimedOut, DiffCount: 2, IgnoredCount: 1}))
	assert.False(t, Reproduced(archived, &harness.TrialResult{Status: harness.StatusBroke, DiffCount: 3, IgnoredCount: 1}))
}

func archivedRun(t *testing.T) *store.Archive {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(settings.KeyPollInterval, 100*time.Microsecond)

	archive, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	dev, driver, err := settings.NewHarness(nil)
	require.NoError(t, err)
	defer dev.Close()

	driver.OnEvent(archive.Observer(func(err error) { t.Error(err) }))

	_, err = driver.RunCase(context.Background(), 0, harness.TestCase{Label: "li $1, 0x8888", Encoding: 0x34018888})
	require.NoError(t, err)

	_, err = driver.RunCase(context.Background(), 1, harness.TestCase{Label: "nop", Encoding: 0})
	require.NoError(t, err)

	return archive
}

func TestReplay(t *testing.T) {
	archive := archivedRun(t)

	record, result, err := Replay(context.Background(), archive, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "li $1, 0x8888", record.Case.Label)
	assert.Equal(t, record.Trial.Seed, result.Seed)
	assert.Equal(t, uint32(0x34018888), result.Candidate)
	assert.True(t, Reproduced(&record.Trial, result))
	assert.Positive(t, result.DiffCount)

	_, _, err = Replay(context.Background(), archive, 0, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBrowser(t *testing.T) {
	archive := archivedRun(t)

	var out bytes.Buffer
	var replayed []int

	browser := &archiveBrowser{archive: archive, out: &out, replay: func(c, trial int) {
		replayed = append(replayed, c, trial)
	}}

	run := func(input string) string {
		out.Reset()
		assert.True(t, browser.execute(input), input)
		return out.String()
	}

	text := run("cases")
	assert.Contains(t, text, "li $1, 0x8888")
	assert.Contains(t, text, "2 cases, 2 trials, 1 failed")

	text = run("trials 0")
	assert.Contains(t, text, "0x34018888")
	assert.Contains(t, text, "1 of 1 trials")

	assert.Contains(t, run("failures 1"), "0 of 1 trials")
	assert.Contains(t, run("show 0 0"), "gpr[1]")
	assert.Contains(t, run("show 0 5"), "not found")
	assert.Contains(t, run("trials"), "usage: trials <case>")
	assert.Contains(t, run("replay x 0"), "invalid case index")
	assert.True(t, strings.HasPrefix(run("bogus"), "unknown command"))

	help := run("help")
	assert.Contains(t, help, "replay <case> <trial>")
	assert.Equal(t, browseCmd.Long+"\n", help)

	run("replay 1 0")
	assert.Equal(t, []int{1, 0}, replayed)

	assert.False(t, browser.execute("quit"))
}
