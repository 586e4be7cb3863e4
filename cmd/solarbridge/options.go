package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
)

// configEnv names the config file when --config is not given.
const configEnv = "SOLARBRIDGE_CONFIG"

// Options are the command-line overrides. Each one replaces the file or
// environment value only when the flag was given.
type Options struct {
	ConfigPath      string
	DevicePath      string
	Driver          string
	RefreshInterval int
	DatabaseFile    string
	SetupCode       string
	Port            int
	Model           string
}

// NewOptions returns options with the configuration defaults, so --help
// shows the effective values.
func NewOptions() *Options {
	d := config.Default()
	return &Options{
		ConfigPath:      os.Getenv(configEnv),
		DevicePath:      d.Device.Path,
		Driver:          d.Device.Driver,
		RefreshInterval: d.Refresh.Interval,
		DatabaseFile:    d.Database.Path,
		Port:            d.API.Port,
		Model:           d.Accessory.Model,
	}
}

// AddFlags registers the daemon flags on fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigPath, "config", "c", o.ConfigPath, "YAML configuration file (env "+configEnv+").")
	fs.StringVar(&o.DevicePath, "path", o.DevicePath, "The special file path to the inverter device.")
	fs.StringVar(&o.Driver, "driver", o.Driver, "Inverter driver (\"sim\" runs without hardware).")
	fs.IntVar(&o.RefreshInterval, "refresh-interval", o.RefreshInterval, "Seconds between inverter polls. At least 1.")
	fs.StringVar(&o.DatabaseFile, "file", o.DatabaseFile, "Database holding pairings and history.")
	fs.StringVar(&o.SetupCode, "setup-code", o.SetupCode, "Pairing code in XXX-XX-XXX form. Random when empty.")
	fs.IntVar(&o.Port, "port", o.Port, "Port the accessory API listens on.")
	fs.StringVar(&o.Model, "model", o.Model, "Inverter model; selects the product profile.")
}

// Apply copies the flags that were set on fs into cfg.
func (o *Options) Apply(cfg *config.Config, fs *pflag.FlagSet) {
	if fs.Changed("path") {
		cfg.Device.Path = o.DevicePath
	}
	if fs.Changed("driver") {
		cfg.Device.Driver = o.Driver
	}
	if fs.Changed("refresh-interval") {
		cfg.Refresh.Interval = o.RefreshInterval
	}
	if fs.Changed("file") {
		cfg.Database.Path = o.DatabaseFile
	}
	if fs.Changed("setup-code") {
		cfg.Accessory.SetupCode = o.SetupCode
	}
	if fs.Changed("port") {
		cfg.API.Port = o.Port
	}
	if fs.Changed("model") {
		cfg.Accessory.Model = o.Model
	}
}

// LoadConfig reads the configuration file, applies the environment and the
// given flags, and validates the result.
func (o *Options) LoadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	o.Apply(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
