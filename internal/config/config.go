package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cjeanneret/SwerveGo/internal/hw/actuator"
	"github.com/cjeanneret/SwerveGo/internal/logic/swerve"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file.
const MaxConfigFileBytes = 64 * 1024

// GeometryConfig describes the wheel and the reductions shared by all modules.
// Defaults are an SDS MK4i with L2 gearing and a 4" wheel.
type GeometryConfig struct {
	WheelDiameterM float64 `yaml:"wheel_diameter_m"`
	DriveGearRatio float64 `yaml:"drive_gear_ratio"` // motor turns per wheel turn
	SteerGearRatio float64 `yaml:"steer_gear_ratio"` // motor turns per steer turn
}

// GainsConfig holds closed-loop constants for one axis.
type GainsConfig struct {
	P        float64 `yaml:"p"`
	I        float64 `yaml:"i"`
	D        float64 `yaml:"d"`
	FF       float64 `yaml:"ff"`
	MaxAccel float64 `yaml:"max_accel"` // 0 = unset
}

// AxisConfig is the motor bring-up shared by the drive (or steer) motor of every module.
type AxisConfig struct {
	CurrentLimitA int         `yaml:"current_limit_a"`
	BrakeMode     *bool       `yaml:"brake_mode,omitempty"` // default true
	Gains         GainsConfig `yaml:"gains"`
}

// ModuleConfig identifies the devices of one module on the bus.
type ModuleConfig struct {
	Name          string  `yaml:"name"`
	DriveID       int     `yaml:"drive_id"`
	SteerID       int     `yaml:"steer_id"`
	EncoderID     int     `yaml:"encoder_id"`
	OffsetDeg     float64 `yaml:"offset_deg"` // absolute encoder magnet offset
	DriveInverted bool    `yaml:"drive_inverted"`
	SteerInverted bool    `yaml:"steer_inverted"`
}

// BusConfig selects the serial port of the motor-controller bridge.
type BusConfig struct {
	Port      string `yaml:"port"` // e.g., "/dev/ttyACM0"
	BaudRate  int    `yaml:"baud_rate"`
	TimeoutMs int    `yaml:"timeout_ms"` // reply timeout
}

// EnableConfig is the GPIO enable line of the bridge.
type EnableConfig struct {
	Pin int `yaml:"pin"` // BCM pin, 0 = not wired
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	LoopPeriodMs int     `yaml:"loop_period_ms"` // control-loop period
	DeadbandMps  float64 `yaml:"deadband_mps"`   // speeds below this mean stop
	DebugLevel   int     `yaml:"debug_level"`    // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockBus      bool    `yaml:"mock_bus"`       // simulated motors instead of the serial bridge
	MockGPIO     bool    `yaml:"mock_gpio"`      // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Geometry GeometryConfig `yaml:"geometry"`
	Drive    AxisConfig     `yaml:"drive"`
	Steer    AxisConfig     `yaml:"steer"`
	Modules  []ModuleConfig `yaml:"modules"`
	Bus      BusConfig      `yaml:"bus"`
	Enable   EnableConfig   `yaml:"enable"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files directly inside a directory
// named "configs".
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Geometry.WheelDiameterM == 0 {
		c.Geometry.WheelDiameterM = 0.1016 // 4"
	}
	if c.Geometry.DriveGearRatio == 0 {
		c.Geometry.DriveGearRatio = 6.75 // L2
	}
	if c.Geometry.SteerGearRatio == 0 {
		c.Geometry.SteerGearRatio = 150.0 / 7.0
	}
	if c.Drive.CurrentLimitA == 0 {
		c.Drive.CurrentLimitA = 40
	}
	if c.Steer.CurrentLimitA == 0 {
		c.Steer.CurrentLimitA = 20
	}
	if c.Bus.BaudRate == 0 {
		c.Bus.BaudRate = 115200
	}
	if c.Bus.TimeoutMs == 0 {
		c.Bus.TimeoutMs = 50
	}
	if c.Defaults.LoopPeriodMs == 0 {
		c.Defaults.LoopPeriodMs = 20
	}
	if c.Defaults.DeadbandMps == 0 {
		c.Defaults.DeadbandMps = swerve.DefaultDeadband
	}
}

func (c *Config) validate() error {
	if err := c.ModuleGeometry().Validate(); err != nil {
		return fmt.Errorf("geometry: %w", err)
	}
	if c.Drive.CurrentLimitA < 0 || c.Steer.CurrentLimitA < 0 {
		return fmt.Errorf("current_limit_a must be >= 0")
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("at least one module is required")
	}

	names := make(map[string]bool)
	ids := make(map[int]string)
	for i, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("modules[%d].name is required", i)
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate module name %q", m.Name)
		}
		names[m.Name] = true

		if math.IsNaN(m.OffsetDeg) || m.OffsetDeg < -180 || m.OffsetDeg > 180 {
			return fmt.Errorf("module %s: offset_deg must be between -180 and 180, got %g", m.Name, m.OffsetDeg)
		}
		for _, id := range []int{m.DriveID, m.SteerID, m.EncoderID} {
			if id <= 0 {
				return fmt.Errorf("module %s: device ids must be > 0", m.Name)
			}
			if owner, dup := ids[id]; dup {
				return fmt.Errorf("module %s: device id %d already used by %s", m.Name, id, owner)
			}
			ids[id] = m.Name
		}
	}

	if !c.Defaults.MockBus && c.Bus.Port == "" {
		return fmt.Errorf("bus.port is required unless defaults.mock_bus is set")
	}
	if c.Bus.TimeoutMs < 0 {
		return fmt.Errorf("bus.timeout_ms must be > 0, got %d", c.Bus.TimeoutMs)
	}
	if c.Defaults.LoopPeriodMs < 0 {
		return fmt.Errorf("loop_period_ms must be > 0, got %d", c.Defaults.LoopPeriodMs)
	}
	if c.Defaults.DeadbandMps < 0 {
		return fmt.Errorf("deadband_mps must be >= 0, got %g", c.Defaults.DeadbandMps)
	}
	return nil
}

// LoopPeriod returns the control-loop period.
func (c *Config) LoopPeriod() time.Duration {
	return time.Duration(c.Defaults.LoopPeriodMs) * time.Millisecond
}

// BusTimeout returns the reply timeout of the serial bus.
func (c *Config) BusTimeout() time.Duration {
	return time.Duration(c.Bus.TimeoutMs) * time.Millisecond
}

// ModuleGeometry returns the geometry shared by every module.
func (c *Config) ModuleGeometry() swerve.Geometry {
	return swerve.Geometry{
		WheelDiameter:  c.Geometry.WheelDiameterM,
		DriveGearRatio: c.Geometry.DriveGearRatio,
		SteerGearRatio: c.Geometry.SteerGearRatio,
	}
}

// ModuleConfigs returns one swerve.Config per configured module, in file order.
func (c *Config) ModuleConfigs() []swerve.Config {
	out := make([]swerve.Config, 0, len(c.Modules))
	for _, m := range c.Modules {
		drive := c.Drive.device()
		drive.Inverted = m.DriveInverted
		steer := c.Steer.device()
		steer.Inverted = m.SteerInverted

		out = append(out, swerve.Config{
			Name:          m.Name,
			Geometry:      c.ModuleGeometry(),
			Drive:         drive,
			Steer:         steer,
			OffsetDegrees: m.OffsetDeg,
			Deadband:      c.Defaults.DeadbandMps,
		})
	}
	return out
}

func (a AxisConfig) device() actuator.DeviceConfig {
	brake := true
	if a.BrakeMode != nil {
		brake = *a.BrakeMode
	}
	return actuator.DeviceConfig{
		CurrentLimit: a.CurrentLimitA,
		BrakeMode:    brake,
		Gains: actuator.GainSet{
			P:        a.Gains.P,
			I:        a.Gains.I,
			D:        a.Gains.D,
			FF:       a.Gains.FF,
			MaxAccel: a.Gains.MaxAccel,
		},
	}
}
