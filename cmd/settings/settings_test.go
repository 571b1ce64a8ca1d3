package settings

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestHarnessConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		reset(t)

		config, err := HarnessConfig()
		require.NoError(t, err)
		assert.Equal(t, harness.DefaultTrials, config.Trials)
		assert.Equal(t, harness.DefaultSeed, config.Seed)
		assert.Equal(t, harness.DefaultTimeout, config.Timeout)
		assert.True(t, config.CrashOnFinish)
		assert.Equal(t, harness.DefaultIgnoreList().Entries(), config.Ignore.Entries())
	})

	t.Run("overrides", func(t *testing.T) {
		reset(t)
		viper.Set(KeyTrials, 7)
		viper.Set(KeySeed, "0x10")
		viper.Set(KeyTimeout, "50ms")
		viper.Set(KeyIgnore, []string{"cop0", "3"})
		viper.Set(KeyNoCrash, true)

		config, err := HarnessConfig()
		require.NoError(t, err)
		assert.Equal(t, 7, config.Trials)
		assert.Equal(t, uint32(0x10), config.Seed)
		assert.Equal(t, 50*time.Millisecond, config.Timeout)
		assert.False(t, config.CrashOnFinish)
		assert.Equal(t, []string{"cop0", "gpr[3]"}, config.Ignore.Entries())
	})

	t.Run("invalid", func(t *testing.T) {
		reset(t)
		viper.Set(KeySeed, "seed")
		_, err := HarnessConfig()
		assert.Error(t, err)

		reset(t)
		viper.Set(KeyIgnore, []string{"nonsense[9]"})
		_, err = HarnessConfig()
		assert.ErrorIs(t, err, harness.ErrUnknownField)

		reset(t)
		viper.Set(KeyTrials, 0)
		_, err = HarnessConfig()
		assert.Error(t, err)
	})
}

func TestBindFlags(t *testing.T) {
	reset(t)

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddHarnessFlags(flags)
	require.NoError(t, flags.Parse([]string{"--trials", "5", "--poll-interval", "100us"}))
	BindFlags(flags)

	config, err := HarnessConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, config.Trials)
	assert.Equal(t, 100*time.Microsecond, config.PollInterval)
	assert.Equal(t, harness.DefaultSeed, config.Seed)
}

func TestNewHarness(t *testing.T) {
	reset(t)
	viper.Set(KeyRDRAMSize, 2<<20)

	dev, driver, err := NewHarness(nil)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, harness.DefaultTrials, driver.Config().Trials)
	assert.Len(t, DeviceOptions(), 1)
}

func TestTracedHarness(t *testing.T) {
	reset(t)
	viper.Set(KeyTrace, true)
	viper.Set(KeyPollInterval, 100*time.Microsecond)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	dev, driver, err := NewHarness(logger)
	require.NoError(t, err)
	defer dev.Close()

	_, err = driver.RunCase(context.Background(), 0, harness.TestCase{Label: "nop", Encoding: 0})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "component=coprocessor-trace")
	assert.Contains(t, buf.String(), "RunAsync()")
}
