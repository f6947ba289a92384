package config

import (
	"os"

	"codeberg.org/veldt/trainwatch/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultProject   = "trainwatch"
	DefaultInterval  = 10
	DefaultSnapshot  = "trainwatch.json"
	DefaultEnergyLog = "energy/impact.jsonl"
	DefaultLogLevel  = "info"
)

type Config struct {
	Project    string `mapstructure:"project"`
	EnergyLog  string `mapstructure:"energy_log"`
	EnergyDir  string `mapstructure:"energy_dir"`
	Snapshot   string `mapstructure:"snapshot"`
	History    string `mapstructure:"history"`
	SinkURL    string `mapstructure:"sink_url"`
	SinkToken  string `mapstructure:"sink_token"`
	SinkOrg    string `mapstructure:"sink_org"`
	SinkBucket string `mapstructure:"sink_bucket"`
	Interval   int    `mapstructure:"interval"`
	Monitor    bool   `mapstructure:"monitor"`
	Replay     string `mapstructure:"replay"`
	LogLevel   string `mapstructure:"log_level"`
	Debug      bool   `mapstructure:"debug"`
	Verbose    bool   `mapstructure:"verbose"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()

	fs := pflag.NewFlagSet("trainwatch", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.String("project", DefaultProject, "Project name the run is attributed to")
	fs.String("energy_log", DefaultEnergyLog, "Path to the energy log file")
	fs.String("energy_dir", "", "Directory of energy logs provided by the run")
	fs.String("snapshot", DefaultSnapshot, "Path to the JSON telemetry snapshot")
	fs.String("history", "", "Path to the sqlite record history (empty disables it)")
	fs.String("sink_url", "", "Remote tracking sink URL (empty uses a no-op sink)")
	fs.String("sink_token", "", "Remote tracking sink auth token")
	fs.String("sink_org", "", "Remote tracking sink organization")
	fs.String("sink_bucket", "", "Remote tracking sink bucket")
	fs.Int("interval", DefaultInterval, "Seconds between energy samples in monitor mode")
	fs.Bool("monitor", false, "Sample GPU/CPU power into the energy log")
	fs.String("replay", "", "Replay a run-events file through the recorder")
	fs.String("log_level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix("TRAINWATCH")
	v.AutomaticEnv()

	// An explicit TRAINWATCH_CONFIG wins over the search path
	if path := os.Getenv("TRAINWATCH_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trainwatch")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Project == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "project must not be empty")
	}
	if c.Snapshot == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "snapshot path must not be empty")
	}
	if c.Interval <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "interval must be positive")
	}
	if c.Monitor && c.EnergyLog == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "monitor mode requires an energy log path")
	}

	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}
