package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/SwerveGo/internal/logic/swerve"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_Rejected(t *testing.T) {
	cases := []string{
		"",
		"../../etc/passwd",
		"configs/../../../etc/shadow",
		"configs/default.json",
		"configs/default.yml",
		"configs/default",
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for %q, got nil", path)
		}
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
geometry:
  wheel_diameter_m: 0.1016
  drive_gear_ratio: 6.75
  steer_gear_ratio: 21.4286
drive:
  current_limit_a: 40
  gains: {p: 0.05, ff: 0.2}
steer:
  current_limit_a: 20
  brake_mode: false
  gains: {p: 1.0, d: 0.02, max_accel: 300}
modules:
  - {name: front_left,  drive_id: 1, steer_id: 2, encoder_id: 9,  offset_deg: -73.5}
  - {name: front_right, drive_id: 3, steer_id: 4, encoder_id: 10, offset_deg: 12.0, drive_inverted: true}
  - {name: back_left,   drive_id: 5, steer_id: 6, encoder_id: 11, offset_deg: 179.9}
  - {name: back_right,  drive_id: 7, steer_id: 8, encoder_id: 12, offset_deg: -180, steer_inverted: true}
bus:
  port: /dev/ttyACM0
  baud_rate: 230400
  timeout_ms: 30
enable:
  pin: 18
defaults:
  loop_period_ms: 10
  deadband_mps: 0.002
  debug_level: 0
  mock_gpio: true
`

const minimalYAML = `
modules:
  - {name: only, drive_id: 1, steer_id: 2, encoder_id: 3}
defaults:
  mock_bus: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Modules) != 4 {
		t.Fatalf("modules = %d, want 4", len(cfg.Modules))
	}
	if cfg.Modules[0].OffsetDeg != -73.5 {
		t.Errorf("modules[0].offset_deg = %v, want -73.5", cfg.Modules[0].OffsetDeg)
	}
	if cfg.Bus.BaudRate != 230400 {
		t.Errorf("bus.baud_rate = %d, want 230400", cfg.Bus.BaudRate)
	}
	if cfg.Enable.Pin != 18 {
		t.Errorf("enable.pin = %d, want 18", cfg.Enable.Pin)
	}
	if cfg.Steer.Gains.MaxAccel != 300 {
		t.Errorf("steer.gains.max_accel = %v, want 300", cfg.Steer.Gains.MaxAccel)
	}
	if cfg.Defaults.DeadbandMps != 0.002 {
		t.Errorf("deadband_mps = %v, want 0.002", cfg.Defaults.DeadbandMps)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Geometry.WheelDiameterM != 0.1016 {
		t.Errorf("wheel_diameter_m default = %v, want 0.1016", cfg.Geometry.WheelDiameterM)
	}
	if cfg.Geometry.DriveGearRatio != 6.75 {
		t.Errorf("drive_gear_ratio default = %v, want 6.75", cfg.Geometry.DriveGearRatio)
	}
	if cfg.Drive.CurrentLimitA != 40 || cfg.Steer.CurrentLimitA != 20 {
		t.Errorf("current limits default = %d/%d, want 40/20", cfg.Drive.CurrentLimitA, cfg.Steer.CurrentLimitA)
	}
	if cfg.Bus.BaudRate != 115200 {
		t.Errorf("baud_rate default = %d, want 115200", cfg.Bus.BaudRate)
	}
	if cfg.Defaults.LoopPeriodMs != 20 {
		t.Errorf("loop_period_ms default = %d, want 20", cfg.Defaults.LoopPeriodMs)
	}
	if cfg.Defaults.DeadbandMps != swerve.DefaultDeadband {
		t.Errorf("deadband_mps default = %v, want %v", cfg.Defaults.DeadbandMps, swerve.DefaultDeadband)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"no_modules", "defaults: {mock_bus: true}"},
		{"missing_name", `
modules: [{drive_id: 1, steer_id: 2, encoder_id: 3}]
defaults: {mock_bus: true}`},
		{"duplicate_name", `
modules:
  - {name: a, drive_id: 1, steer_id: 2, encoder_id: 3}
  - {name: a, drive_id: 4, steer_id: 5, encoder_id: 6}
defaults: {mock_bus: true}`},
		{"duplicate_id", `
modules:
  - {name: a, drive_id: 1, steer_id: 2, encoder_id: 3}
  - {name: b, drive_id: 4, steer_id: 2, encoder_id: 6}
defaults: {mock_bus: true}`},
		{"zero_id", `
modules: [{name: a, drive_id: 0, steer_id: 2, encoder_id: 3}]
defaults: {mock_bus: true}`},
		{"offset_out_of_range", `
modules: [{name: a, drive_id: 1, steer_id: 2, encoder_id: 3, offset_deg: 181}]
defaults: {mock_bus: true}`},
		{"negative_ratio", `
geometry: {drive_gear_ratio: -6.75}
modules: [{name: a, drive_id: 1, steer_id: 2, encoder_id: 3}]
defaults: {mock_bus: true}`},
		{"negative_current", `
drive: {current_limit_a: -1}
modules: [{name: a, drive_id: 1, steer_id: 2, encoder_id: 3}]
defaults: {mock_bus: true}`},
		{"missing_port", `
modules: [{name: a, drive_id: 1, steer_id: 2, encoder_id: 3}]`},
		{"negative_deadband", `
modules: [{name: a, drive_id: 1, steer_id: 2, encoder_id: 3}]
defaults: {mock_bus: true, deadband_mps: -0.1}`},
		{"invalid_yaml", "{{{{invalid yaml!!!!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	content := minimalYAML + strings.Repeat("#", MaxConfigFileBytes)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	content := minimalYAML + "\nunknown_section:\n  foo: bar\n"
	if _, err := Load(writeConfig(t, content)); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(cfgDir, "nonexistent.yaml")); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- Helper methods ----------

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Bus:      BusConfig{TimeoutMs: 30},
		Defaults: DefaultsConfig{LoopPeriodMs: 20},
	}
	if got := cfg.LoopPeriod(); got != 20*time.Millisecond {
		t.Errorf("LoopPeriod() = %v, want 20ms", got)
	}
	if got := cfg.BusTimeout(); got != 30*time.Millisecond {
		t.Errorf("BusTimeout() = %v, want 30ms", got)
	}
}

func TestConfig_ModuleConfigs(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	mods := cfg.ModuleConfigs()
	if len(mods) != 4 {
		t.Fatalf("ModuleConfigs() len = %d, want 4", len(mods))
	}

	fl, fr, br := mods[0], mods[1], mods[3]
	if fl.Name != "front_left" || fl.OffsetDegrees != -73.5 {
		t.Errorf("front_left = %+v", fl)
	}
	if fl.Drive.Inverted || !fr.Drive.Inverted {
		t.Error("drive inversion not taken from module entry")
	}
	if !br.Steer.Inverted || fl.Steer.Inverted {
		t.Error("steer inversion not taken from module entry")
	}
	if !fl.Drive.BrakeMode {
		t.Error("drive brake_mode should default to true")
	}
	if fl.Steer.BrakeMode {
		t.Error("steer brake_mode should be false as configured")
	}
	if fl.Steer.Gains.P != 1.0 || fl.Steer.Gains.D != 0.02 {
		t.Errorf("steer gains = %+v", fl.Steer.Gains)
	}
	if fl.Deadband != 0.002 {
		t.Errorf("deadband = %v, want 0.002", fl.Deadband)
	}
	if fl.Geometry.SteerGearRatio != 21.4286 {
		t.Errorf("steer gear ratio = %v, want 21.4286", fl.Geometry.SteerGearRatio)
	}
}

// formatFloat is a test helper for embedding floats into YAML strings.
func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

func TestLoad_OffsetBoundaries(t *testing.T) {
	for _, off := range []float64{-180, 0, 180} {
		content := fmt.Sprintf(`
modules: [{name: a, drive_id: 1, steer_id: 2, encoder_id: 3, offset_deg: %s}]
defaults: {mock_bus: true}`, formatFloat(off))
		if _, err := Load(writeConfig(t, content)); err != nil {
			t.Errorf("offset %v should be valid, got %v", off, err)
		}
	}
}

func TestLoad_ShippedDefault(t *testing.T) {
	cfg, err := Load("../../configs/default.yaml")
	if err != nil {
		t.Fatalf("Load shipped config: %v", err)
	}
	if len(cfg.Modules) != 4 {
		t.Errorf("modules = %d, want 4", len(cfg.Modules))
	}
	if !cfg.Defaults.MockBus || !cfg.Defaults.MockGPIO {
		t.Error("shipped config should run without hardware")
	}
	for _, mc := range cfg.ModuleConfigs() {
		if !mc.Drive.BrakeMode || mc.Drive.CurrentLimit != 40 || mc.Steer.CurrentLimit != 20 {
			t.Errorf("module %s: unexpected device config %+v / %+v", mc.Name, mc.Drive, mc.Steer)
		}
	}
}
