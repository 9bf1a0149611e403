package main

import (
	"flag"
	"os"
	"time"

	"l2fwd/capture"
	"l2fwd/fwd"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Net1 and Net2 are interface descriptors, "eth1" or "eth1 10.0.0.5 aa:bb:cc:dd:ee:ff".
	Net1                 string          `yaml:"net1"`
	Net2                 string          `yaml:"net2"`
	Print                bool            `yaml:"print"`
	StatsInterval        uint64          `yaml:"statsInterval"`
	Terminate            bool            `yaml:"terminate"`
	Burst                int             `yaml:"burst"`
	FixTransportChecksum bool            `yaml:"fixTransportChecksum"`
	ReportPeriod         time.Duration   `yaml:"reportPeriod"`
	Capture              capture.Options `yaml:"capture"`
}

func defaultConfig() Config {
	return Config{
		Net1:          "eth1",
		Net2:          "eth2",
		StatsInterval: fwd.DefaultSettings.StatsInterval,
		Burst:         fwd.DefaultSettings.Burst,
		Capture:       capture.DefaultOptions,
	}
}

// loadConfig reads the YAML config on top of the defaults. An empty path means defaults only.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err = yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.settings().Validate(); err != nil {
		return err
	}
	return c.Capture.Validate()
}

func (c Config) settings() fwd.Settings {
	return fwd.Settings{
		Stats:                c.Print,
		StatsInterval:        c.StatsInterval,
		Terminate:            c.Terminate,
		Burst:                c.Burst,
		FixTransportChecksum: c.FixTransportChecksum,
	}
}

func (c Config) fwdConfig() fwd.Config {
	return fwd.Config{Net1: c.Net1, Net2: c.Net2, Settings: c.settings()}
}

// overrides are the module parameter style flags. Only flags given on the command line replace
// config file values.
type overrides struct {
	net1          string
	net2          string
	print         bool
	statsInterval uint64
	terminate     bool
	burst         int
}

func registerOverrides(fs *flag.FlagSet) *overrides {
	o := &overrides{}
	fs.StringVar(&o.net1, "net1", "", "first interface, optionally followed by a DNAT target IP and MAC")
	fs.StringVar(&o.net2, "net2", "", "second interface, optionally followed by a DNAT target IP and MAC")
	fs.BoolVar(&o.print, "print", false, "log the frame count every stats-interval frames")
	fs.Uint64Var(&o.statsInterval, "stats-interval", 0, "frames between count logs")
	fs.BoolVar(&o.terminate, "terminate", false, "drop every frame instead of forwarding")
	fs.IntVar(&o.burst, "burst", 0, "frames per transmit burst, 1 disables bursting")
	return o
}

func (o *overrides) apply(fs *flag.FlagSet, cfg *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "net1":
			cfg.Net1 = o.net1
		case "net2":
			cfg.Net2 = o.net2
		case "print":
			cfg.Print = o.print
		case "stats-interval":
			cfg.StatsInterval = o.statsInterval
		case "terminate":
			cfg.Terminate = o.terminate
		case "burst":
			cfg.Burst = o.burst
		}
	})
}
