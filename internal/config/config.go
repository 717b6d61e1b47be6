package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix       = "MOISTURECTL"
	DefaultLogLevel        = string(LogLevelInfo)
	DefaultListenAddr      = ":8080"
	DefaultIntervalMinutes = 1
	DefaultDryThreshold    = 2000
	DefaultSensorDriver    = string(SensorADS1115)
	DefaultI2CAddress      = 0x48
	DefaultIIODevice       = "/sys/bus/iio/devices/iio:device0"
	DefaultTelegramAPIURL  = "https://api.telegram.org"
	DefaultTelegramTimeout = 15 * time.Second
	DefaultProbeAddr       = "api.telegram.org:443"
	DefaultProbeInterval   = 5 * time.Second
	DefaultMetricsDBPath   = "/var/lib/moisturectl/metrics.db"
	DefaultBatchSize       = 10
	DefaultBatchTimeout    = 30

	configName = "moisturectl"
	configType = "toml"
)

type Config struct {
	LogLevel        string `mapstructure:"log_level"`
	ListenAddr      string `mapstructure:"listen_addr"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	DryThreshold    int    `mapstructure:"dry_threshold"`
	Autostart       bool   `mapstructure:"autostart"`
	PIDFile         string `mapstructure:"pid_file"`
	// AllowedOrigins are cross-site origins allowed to open the websocket stream
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Sensor    SensorConfig    `mapstructure:"sensor"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Influx    InfluxConfig    `mapstructure:"influx"`
}

type SensorConfig struct {
	Driver     string `mapstructure:"driver"`
	Channel    int    `mapstructure:"channel"`
	I2CBus     string `mapstructure:"i2c_bus"`
	I2CAddress uint16 `mapstructure:"i2c_address"`
	IIODevice  string `mapstructure:"iio_device"`
}

type TelegramConfig struct {
	Token         string        `mapstructure:"token"`
	ChatID        string        `mapstructure:"chat_id"`
	APIURL        string        `mapstructure:"api_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	AnnounceReady bool          `mapstructure:"announce_ready"`
}

type ReadinessConfig struct {
	ProbeAddr     string        `mapstructure:"probe_addr"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout"`
}

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// Load reads configuration from defaults, an optional TOML file, the
// environment and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: DefaultEnvPrefix,
		envFile:   ".env",
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	// Variables already present in the environment win over the dotenv file
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, flags, o); err != nil {
		return nil, err
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("interval_minutes", DefaultIntervalMinutes)
	v.SetDefault("dry_threshold", DefaultDryThreshold)
	v.SetDefault("autostart", false)
	v.SetDefault("pid_file", filepath.Join(os.TempDir(), "moisturectl.pid"))
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("sensor.driver", DefaultSensorDriver)
	v.SetDefault("sensor.channel", 0)
	v.SetDefault("sensor.i2c_bus", "")
	v.SetDefault("sensor.i2c_address", DefaultI2CAddress)
	v.SetDefault("sensor.iio_device", DefaultIIODevice)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_url", DefaultTelegramAPIURL)
	v.SetDefault("telegram.timeout", DefaultTelegramTimeout)
	v.SetDefault("telegram.announce_ready", true)

	v.SetDefault("readiness.probe_addr", DefaultProbeAddr)
	v.SetDefault("readiness.probe_interval", DefaultProbeInterval)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.db_path", DefaultMetricsDBPath)
	v.SetDefault("metrics.batch_size", DefaultBatchSize)
	v.SetDefault("metrics.batch_timeout", DefaultBatchTimeout)

	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "")
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet(configName, pflag.ContinueOnError)

	flags.String("config", "", "Path to configuration file")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("listen", DefaultListenAddr, "Control API listen address")
	flags.Int("interval", DefaultIntervalMinutes, "Minutes between sensor samples")
	flags.Int("threshold", DefaultDryThreshold, "Reading above which the soil counts as dry")
	flags.Bool("autostart", false, "Start monitoring immediately")
	flags.String("sensor", DefaultSensorDriver, "Sensor driver (ads1115, iio, simulated)")
	flags.Int("channel", 0, "ADC channel of the moisture sensor")

	return flags
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"log-level": "log_level",
	"listen":    "listen_addr",
	"interval":  "interval_minutes",
	"threshold": "dry_threshold",
	"autostart": "autostart",
	"sensor":    "sensor.driver",
	"channel":   "sensor.channel",
}

// bindFlags only binds flags that were set explicitly so that file and
// environment values are not shadowed by flag defaults
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})

	return bindErr
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if flagPath, _ := flags.GetString("config"); flagPath != "" {
		path = flagPath
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err).WithMessage("Failed to read config file")
		}
		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath("/etc")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err).WithMessage("Failed to read config file")
		}
	}

	return nil
}

// Validate checks the loaded configuration for values the monitor cannot run with
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.IntervalMinutes <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.IntervalMinutes)
	}

	driver := SensorDriver(c.Sensor.Driver)
	if !driver.IsValid() {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{
			Field: "sensor.driver",
			Value: c.Sensor.Driver,
		})
	}

	if driver == SensorADS1115 && (c.Sensor.Channel < 0 || c.Sensor.Channel > 3) {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "sensor.channel",
			Value: c.Sensor.Channel,
		})
	}

	if c.Telegram.Timeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value time.Duration
		}{
			Field: "telegram.timeout",
			Value: c.Telegram.Timeout,
		})
	}

	if c.Readiness.ProbeAddr != "" && c.Readiness.ProbeInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value time.Duration
		}{
			Field: "readiness.probe_interval",
			Value: c.Readiness.ProbeInterval,
		})
	}

	if c.Metrics.Enabled && c.Metrics.DBPath == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "metrics.db_path")
	}

	return nil
}

// Interval returns the configured sampling interval as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
