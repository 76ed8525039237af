// Package config loads and validates the layered YAML configuration for
// the ecrsim binary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kprusa/ecrsim/internal/logger"

	"gopkg.in/yaml.v3"
)

// FileLoggerConfig describes rotating-file output for the zap backend.
type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

// LoggerConfig controls the logging backend.
type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// ConstantsConfig mirrors the tunable constants table in the protocol spec.
type ConstantsConfig struct {
	BatteryDrainConstant float64 `yaml:"batteryDrainConstant"`
	BatteryDrainPerPkt   float64 `yaml:"batteryDrainPerPacket"`
	EMAAlpha             float64 `yaml:"emaAlpha"`
	Gamma                float64 `yaml:"discountGamma"`
	RDTimeout            int     `yaml:"rdTimeout"`
	RDResend             int     `yaml:"rdResend"`
	RUMinInterval        int     `yaml:"ruMinInterval"`
}

// SimulationConfig names the inputs and run bounds for one simulation.
type SimulationConfig struct {
	NodesFile   string          `yaml:"nodesFile"`
	PacketsFile string          `yaml:"packetsFile"`
	MaxTicks    int             `yaml:"maxTicks"`
	Constants   ConstantsConfig `yaml:"constants"`
}

// TelemetryConfig selects and configures the telemetry sink backends.
type TelemetryConfig struct {
	FullLogPath        string `yaml:"fullLogPath"`
	PacketLogPath      string `yaml:"packetLogPath"`
	ErrorLogPath       string `yaml:"errorLogPath"`
	PerformanceLogPath string `yaml:"performanceLogPath"`
	EnergyLogPath      string `yaml:"energyLogPath"`
	PacketRingSize     int    `yaml:"packetRingSize"`

	PrometheusEnabled bool   `yaml:"prometheusEnabled"`
	PrometheusAddr    string `yaml:"prometheusAddr"`
}

// Config is the root configuration document.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// Defaults returns a Config populated with the protocol's documented
// tunable constant defaults and reasonable ambient-stack defaults.
func Defaults() Config {
	return Config{
		Logger: LoggerConfig{
			Active:   true,
			Level:    "info",
			Encoding: "console",
			Mode:     "stdout",
		},
		Simulation: SimulationConfig{
			MaxTicks: 10000,
			Constants: ConstantsConfig{
				BatteryDrainConstant: 0.001,
				BatteryDrainPerPkt:   0.0003,
				EMAAlpha:             0.8,
				Gamma:                0.98,
				RDTimeout:            100,
				RDResend:             10,
				RUMinInterval:        5,
			},
		},
		Telemetry: TelemetryConfig{
			PacketRingSize: 1000,
		},
	}
}

// LoadConfig loads the configuration from a YAML file at path, applied on
// top of Defaults() so an omitted section still carries valid values.
//
// This function performs only syntactic parsing. Call ValidateConfig
// afterward to check structural correctness.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvOverrides layers environment-variable overrides onto cfg.
//
// Supported overrides:
//
//	ECR_NODES_FILE       -> cfg.Simulation.NodesFile
//	ECR_PACKETS_FILE     -> cfg.Simulation.PacketsFile
//	ECR_MAX_TICKS        -> cfg.Simulation.MaxTicks
//	ECR_LOGGER_LEVEL     -> cfg.Logger.Level
//	ECR_LOGGER_ENCODING  -> cfg.Logger.Encoding
//	ECR_LOGGER_MODE      -> cfg.Logger.Mode
//	ECR_LOGGER_FILE_PATH -> cfg.Logger.File.Path
//	ECR_PROMETHEUS_ADDR  -> cfg.Telemetry.PrometheusAddr (also enables it)
func (cfg *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ECR_NODES_FILE"); v != "" {
		cfg.Simulation.NodesFile = v
	}
	if v := os.Getenv("ECR_PACKETS_FILE"); v != "" {
		cfg.Simulation.PacketsFile = v
	}
	if v := os.Getenv("ECR_MAX_TICKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulation.MaxTicks = n
		}
	}
	if v := os.Getenv("ECR_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ECR_LOGGER_ENCODING"); v != "" {
		cfg.Logger.Encoding = v
	}
	if v := os.Getenv("ECR_LOGGER_MODE"); v != "" {
		cfg.Logger.Mode = v
	}
	if v := os.Getenv("ECR_LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.File.Path = v
	}
	if v := os.Getenv("ECR_PROMETHEUS_ADDR"); v != "" {
		cfg.Telemetry.PrometheusAddr = v
		cfg.Telemetry.PrometheusEnabled = true
	}
}

// ValidateConfig performs structural validation of cfg, accumulating every
// problem found into a single error rather than failing on the first.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when logger.mode=file")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.Simulation.NodesFile == "" {
		errs = append(errs, "simulation.nodesFile is required")
	}
	if cfg.Simulation.PacketsFile == "" {
		errs = append(errs, "simulation.packetsFile is required")
	}
	if cfg.Simulation.MaxTicks <= 0 {
		errs = append(errs, "simulation.maxTicks must be > 0")
	}

	c := cfg.Simulation.Constants
	if c.BatteryDrainConstant < 0 {
		errs = append(errs, "simulation.constants.batteryDrainConstant must be >= 0")
	}
	if c.BatteryDrainPerPkt < 0 {
		errs = append(errs, "simulation.constants.batteryDrainPerPacket must be >= 0")
	}
	if c.EMAAlpha < 0 || c.EMAAlpha > 1 {
		errs = append(errs, "simulation.constants.emaAlpha must be in [0,1]")
	}
	if c.Gamma <= 0 || c.Gamma > 1 {
		errs = append(errs, "simulation.constants.discountGamma must be in (0,1]")
	}
	if c.RDTimeout <= 0 {
		errs = append(errs, "simulation.constants.rdTimeout must be > 0")
	}
	if c.RDResend <= 0 {
		errs = append(errs, "simulation.constants.rdResend must be > 0")
	}
	if c.RUMinInterval < 0 {
		errs = append(errs, "simulation.constants.ruMinInterval must be >= 0")
	}

	if cfg.Telemetry.PrometheusEnabled && cfg.Telemetry.PrometheusAddr == "" {
		errs = append(errs, "telemetry.prometheusAddr is required when telemetry.prometheusEnabled=true")
	}
	if cfg.Telemetry.PacketRingSize <= 0 {
		errs = append(errs, "telemetry.packetRingSize must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig dumps the effective configuration at debug level.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),

		logger.F("simulation.nodesFile", cfg.Simulation.NodesFile),
		logger.F("simulation.packetsFile", cfg.Simulation.PacketsFile),
		logger.F("simulation.maxTicks", cfg.Simulation.MaxTicks),
		logger.F("simulation.constants.batteryDrainConstant", cfg.Simulation.Constants.BatteryDrainConstant),
		logger.F("simulation.constants.batteryDrainPerPacket", cfg.Simulation.Constants.BatteryDrainPerPkt),
		logger.F("simulation.constants.emaAlpha", cfg.Simulation.Constants.EMAAlpha),
		logger.F("simulation.constants.discountGamma", cfg.Simulation.Constants.Gamma),
		logger.F("simulation.constants.rdTimeout", cfg.Simulation.Constants.RDTimeout),
		logger.F("simulation.constants.rdResend", cfg.Simulation.Constants.RDResend),
		logger.F("simulation.constants.ruMinInterval", cfg.Simulation.Constants.RUMinInterval),

		logger.F("telemetry.fullLogPath", cfg.Telemetry.FullLogPath),
		logger.F("telemetry.packetLogPath", cfg.Telemetry.PacketLogPath),
		logger.F("telemetry.errorLogPath", cfg.Telemetry.ErrorLogPath),
		logger.F("telemetry.performanceLogPath", cfg.Telemetry.PerformanceLogPath),
		logger.F("telemetry.energyLogPath", cfg.Telemetry.EnergyLogPath),
		logger.F("telemetry.packetRingSize", cfg.Telemetry.PacketRingSize),
		logger.F("telemetry.prometheusEnabled", cfg.Telemetry.PrometheusEnabled),
		logger.F("telemetry.prometheusAddr", cfg.Telemetry.PrometheusAddr),
	)
}
