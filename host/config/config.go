// Package config loads the host tool's YAML configuration, with
// defaults, config-file search paths, environment overrides and cobra
// flag binding.
package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pmwtrack/pmw3360"
)

const DefaultAppName = "pmwtrack"
const DefaultConfigName = "config"
const DefaultDevice = "/dev/ttyACM0"
const DefaultBaud = 250000

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"

// SerialOpt is the serial bridge connection.
type SerialOpt struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// SensorOpt mirrors the driver configuration.
type SensorOpt struct {
	CPI     int    `yaml:"cpi" mapstructure:"cpi"`
	Angle   int    `yaml:"angle" mapstructure:"angle"`
	LiftOff string `yaml:"liftoff" mapstructure:"liftoff"` // "2mm" or "3mm"
	SwapXY  bool   `yaml:"swap_xy" mapstructure:"swap_xy"`
	InvertX bool   `yaml:"invert_x" mapstructure:"invert_x"`
	InvertY bool   `yaml:"invert_y" mapstructure:"invert_y"`
}

// StreamOpt selects the event pacing.
type StreamOpt struct {
	Mode       string `yaml:"mode" mapstructure:"mode"`               // "poll" or "interrupt"
	IntervalUS int    `yaml:"interval_us" mapstructure:"interval_us"` // polling period
}

// Opt is the full host tool configuration.
type Opt struct {
	Serial SerialOpt `yaml:"serial"`
	Sensor SensorOpt `yaml:"sensor"`
	Stream StreamOpt `yaml:"stream"`
	Debug  bool      `yaml:"debug"`
}

// Desc couples the parsed options with the viper instance that loaded
// them, so the config file can be written back.
type Desc struct {
	Opt   Opt
	Viper *viper.Viper
}

func NewOpt() Opt {
	return Opt{
		Serial: SerialOpt{Device: DefaultDevice, Baud: DefaultBaud},
		Sensor: SensorOpt{CPI: 800, LiftOff: "2mm"},
		Stream: StreamOpt{Mode: "poll", IntervalUS: 1000},
	}
}

func NewDesc() Desc {
	return Desc{Opt: NewOpt()}
}

// Parse loads the configuration in precedence order: flags, then
// environment (PMWTRACK_*), then config file, then defaults.
func (o *Desc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	vipCfg.SetDefault("serial.device", DefaultDevice)
	vipCfg.SetDefault("serial.baud", DefaultBaud)
	vipCfg.SetDefault("sensor.cpi", 800)
	vipCfg.SetDefault("sensor.angle", 0)
	vipCfg.SetDefault("sensor.liftoff", "2mm")
	vipCfg.SetDefault("stream.mode", "poll")
	vipCfg.SetDefault("stream.interval_us", 1000)
	vipCfg.SetDefault("debug", false)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else if configFileEnv := os.Getenv("PMWTRACK_CONFIG"); configFileEnv != "" {
		vipCfg.SetConfigFile(configFileEnv)
	} else {
		vipCfg.SetConfigName(DefaultConfigName)
		vipCfg.SetConfigType("yaml")
		vipCfg.AddConfigPath(DefaultConfigSearchPath0)
		vipCfg.AddConfigPath(DefaultConfigSearchPath1)
		vipCfg.AddConfigPath(DefaultConfigSearchPath2)
	}

	vipCfg.SetEnvPrefix(strings.ToUpper(DefaultAppName))
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	_ = vipCfg.BindPFlag("serial.device", cmd.Flags().Lookup("device"))
	_ = vipCfg.BindPFlag("serial.baud", cmd.Flags().Lookup("baud"))
	_ = vipCfg.BindPFlag("sensor.cpi", cmd.Flags().Lookup("cpi"))
	_ = vipCfg.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		log.Debugln(err)
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}

	o.Viper = vipCfg
	return nil
}

// PostParse applies the settings that affect the process itself.
func (o *Desc) PostParse() {
	if o.Opt.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Validate checks the configuration declaratively; it must not mutate
// it. Range clamping of the resolution is the driver's job and is
// deliberately not duplicated here.
func Validate(o *Opt) error {
	if o.Serial.Device == "" {
		return fmt.Errorf("config: serial.device is required")
	}
	if o.Serial.Baud <= 0 {
		return fmt.Errorf("config: serial.baud must be > 0")
	}
	if o.Sensor.CPI <= 0 {
		return fmt.Errorf("config: sensor.cpi must be > 0")
	}
	switch o.Sensor.LiftOff {
	case "2mm", "3mm":
	default:
		return fmt.Errorf("config: sensor.liftoff must be 2mm or 3mm, got %q", o.Sensor.LiftOff)
	}
	switch o.Stream.Mode {
	case "poll", "interrupt":
	default:
		return fmt.Errorf("config: stream.mode must be poll or interrupt, got %q", o.Stream.Mode)
	}
	if o.Stream.Mode == "poll" && o.Stream.IntervalUS <= 0 {
		return fmt.Errorf("config: stream.interval_us must be > 0 in poll mode")
	}
	return nil
}

// SensorConfig converts the YAML options to the driver configuration.
func (o *Opt) SensorConfig() pmw3360.Config {
	cfg := pmw3360.Config{
		CPI:     o.Sensor.CPI,
		Angle:   o.Sensor.Angle,
		LiftOff: pmw3360.LiftOff2mm,
		SwapXY:  o.Sensor.SwapXY,
		InvertX: o.Sensor.InvertX,
		InvertY: o.Sensor.InvertY,
	}
	if o.Sensor.LiftOff == "3mm" {
		cfg.LiftOff = pmw3360.LiftOff3mm
	}
	return cfg
}

// Dump renders the options as YAML.
func (o *Opt) Dump() ([]byte, error) {
	return yaml.Marshal(o)
}
