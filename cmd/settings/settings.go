// Package settings maps the configuration keys shared by every command to harness settings
package settings

import (
	"fmt"
	"log/slog"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/emulator"
	"github.com/Manu343726/rspdiff/pkg/utils"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. Flags, the config file and RSPDIFF_* environment variables all use them
const (
	KeyCases            = "cases"
	KeyTrials           = "trials"
	KeyTimeout          = "timeout"
	KeyPollInterval     = "poll-interval"
	KeySeed             = "seed"
	KeyIgnore           = "ignore"
	KeyStore            = "store"
	KeyNoCrash          = "no-crash"
	KeyBootstrapTimeout = "bootstrap-timeout"
	KeyRDRAMSize        = "rdram-size"
	KeyLogLevel         = "log-level"
	KeyLogFile          = "log-file"
	KeyTrace            = "trace"
)

var keys = []string{
	KeyCases, KeyTrials, KeyTimeout, KeyPollInterval, KeySeed, KeyIgnore, KeyStore, KeyNoCrash,
	KeyBootstrapTimeout, KeyRDRAMSize, KeyLogLevel, KeyLogFile, KeyTrace,
}

// Bind binds a flag to its configuration key
func Bind(flags *pflag.FlagSet, key string) {
	if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", key, err))
	}
}

// BindFlags binds every configuration key flags defines. Several commands define the same
// flags, so each command binds its own set right before running.
func BindFlags(flags *pflag.FlagSet) {
	for _, key := range keys {
		if flags.Lookup(key) != nil {
			Bind(flags, key)
		}
	}
}

// AddHarnessFlags registers the flags controlling a harness run
func AddHarnessFlags(flags *pflag.FlagSet) {
	flags.IntP(KeyTrials, "n", harness.DefaultTrials, "Trials per masked case, unless the case sets its own count")
	flags.DurationP(KeyTimeout, "t", harness.DefaultTimeout, "Bound of the wait for a candidate to finish")
	flags.Duration(KeyPollInterval, harness.DefaultPollInterval, "Status polling interval while waiting for a candidate")
	flags.String(KeySeed, fmt.Sprintf("0x%08x", harness.DefaultSeed), "Seed the garbage generator of every case starts from")
	flags.StringSlice(KeyIgnore, harness.DefaultIgnoreEntries, "Fields excluded from the diff: class names, field names, COP0 register names or GPR indices")
	flags.Duration(KeyBootstrapTimeout, harness.DefaultBootstrapTimeout, "Bound of the wait for the seeding program")
	flags.Int(KeyRDRAMSize, emulator.DefaultRDRAMSize, "RDRAM size of the emulated coprocessor, in bytes")
	flags.Bool(KeyTrace, false, "Log every host operation on the coprocessor at debug level")
}

// HarnessConfig builds the harness configuration from the keys set by flags, the config file or
// the environment. Unset keys keep the harness defaults.
func HarnessConfig() (harness.Config, error) {
	config := harness.DefaultConfig()

	if viper.IsSet(KeyTrials) {
		config.Trials = viper.GetInt(KeyTrials)
	}

	if viper.IsSet(KeyTimeout) {
		config.Timeout = viper.GetDuration(KeyTimeout)
	}

	if viper.IsSet(KeyPollInterval) {
		config.PollInterval = viper.GetDuration(KeyPollInterval)
	}

	if viper.IsSet(KeyBootstrapTimeout) {
		config.BootstrapTimeout = viper.GetDuration(KeyBootstrapTimeout)
	}

	if viper.IsSet(KeyNoCrash) {
		config.CrashOnFinish = !viper.GetBool(KeyNoCrash)
	}

	if viper.IsSet(KeySeed) {
		text := viper.GetString(KeySeed)

		seed, err := utils.ParseUint32(text)
		if err != nil {
			return config, fmt.Errorf("invalid seed '%s': %w", text, err)
		}

		config.Seed = seed
	}

	if viper.IsSet(KeyIgnore) {
		ignore, err := harness.ParseIgnoreList(viper.GetStringSlice(KeyIgnore))
		if err != nil {
			return config, err
		}

		config.Ignore = ignore
	}

	if config.Timeout <= 0 {
		return config, fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	if config.Trials <= 0 {
		return config, fmt.Errorf("trials must be positive, got %d", config.Trials)
	}

	return config, nil
}

// DeviceOptions returns the emulator options from the bound keys
func DeviceOptions() []emulator.Option {
	var options []emulator.Option

	if size := viper.GetInt(KeyRDRAMSize); size > 0 {
		options = append(options, emulator.WithRDRAMSize(size))
	}

	return options
}

// NewHarness creates an emulated coprocessor and a driver for the default test image.
// Callers own the device and must close it.
func NewHarness(logger *slog.Logger) (*emulator.Device, *harness.Driver, error) {
	config, err := HarnessConfig()
	if err != nil {
		return nil, nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	dev := emulator.NewDevice(append(DeviceOptions(), emulator.WithLogger(logger))...)

	var target rsp.Coprocessor = dev
	if viper.GetBool(KeyTrace) {
		target = rsp.Traced(dev, rsp.LogTracer(logger))
	}

	driver, err := harness.NewDriver(target, harness.TestImage(), config, logger)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}

	return dev, driver, nil
}
