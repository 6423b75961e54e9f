package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/SwerveGo/internal/config"
	"github.com/cjeanneret/SwerveGo/internal/debug"
	"github.com/cjeanneret/SwerveGo/internal/hw/actuator"
	"github.com/cjeanneret/SwerveGo/internal/hw/bus"
	"github.com/cjeanneret/SwerveGo/internal/hw/gpio"
	"github.com/cjeanneret/SwerveGo/internal/logic/drivetrain"
	"github.com/cjeanneret/SwerveGo/internal/logic/swerve"
	"github.com/cjeanneret/SwerveGo/internal/web"
)

// options are the parsed command-line flags.
type options struct {
	configPath string
	webPort    int
	speed      float64
	headingDeg float64
	duration   time.Duration
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "serve telemetry on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	speed := flag.Float64("speed", 0, "wheel speed in m/s commanded to every module")
	headingDeg := flag.Float64("heading_deg", 0, "wheel heading in degrees commanded to every module (-180..180)")
	duration := flag.Duration("duration", 3*time.Second, "how long to drive before stopping")
	flag.Parse()

	opts := options{
		configPath: *cfgPath,
		webPort:    webPort.port(),
		speed:      *speed,
		headingDeg: *headingDeg,
		duration:   *duration,
	}
	// run returns only after its deferred cleanup, so the enable line is
	// low again before the process exits.
	if err := run(opts); err != nil {
		log.Printf("swervego: %v", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := validateCLIOverrides(opts.speed, opts.headingDeg, opts.duration); err != nil {
		return fmt.Errorf("invalid CLI override: %w", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	defer debug.Sync()
	debug.Section("Initialization")
	debug.Value("Config path", opts.configPath)
	debug.Value("Debug level", debug.Level())

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	enable, err := gpio.NewEnableLine(gpioDriver, cfg.Enable.Pin)
	if err != nil {
		return fmt.Errorf("init enable line: %w", err)
	}

	// Initialize devices
	debug.Step(2, "Initializing motor controllers")
	devices, closeDevices, err := newDeviceFactory(cfg)
	if err != nil {
		return fmt.Errorf("init bus: %w", err)
	}
	defer closeDevices()

	// Configuration errors are fatal: the robot is never enabled with an
	// uncalibrated module.
	debug.Step(3, "Configuring and calibrating modules")
	modules, err := drivetrain.NewModules(cfg.ModuleConfigs(), devices)
	if err != nil {
		return fmt.Errorf("module configuration failed, not enabling: %w", err)
	}
	dt := drivetrain.New(modules, enable)

	var telemetry *web.TelemetryBroadcaster
	if opts.webPort > 0 {
		telemetry = web.NewTelemetryBroadcaster()
		srv := web.NewServer(fmt.Sprintf(":%d", opts.webPort), telemetry)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("telemetry server: %v", err)
			}
		}()
	}

	desired := swerve.State{Speed: opts.speed, Heading: swerve.Radians(opts.headingDeg)}
	return drive(ctx, dt, desired, cfg.LoopPeriod(), opts.duration, telemetry, os.Stdout)
}

// drive enables the drivetrain, runs the control loop for duration and
// prints the final positions. The drivetrain is disabled on every return
// path.
func drive(ctx context.Context, dt *drivetrain.Drivetrain, desired swerve.State, period, duration time.Duration,
	telemetry *web.TelemetryBroadcaster, out io.Writer) (err error) {
	defer func() {
		if derr := dt.Disable(); derr != nil {
			err = errors.Join(err, fmt.Errorf("disable: %w", derr))
		}
	}()

	debug.Step(4, "Enabling drivetrain")
	if err := dt.Enable(); err != nil {
		return fmt.Errorf("enable: %w", err)
	}

	modules := dt.Modules()
	if debug.IsEnabled(debug.LevelInfo) {
		debug.Summary(debug.Fmt("Driving %v on %d modules for %v", desired, len(modules), duration))
	}

	runCtx, stop := context.WithTimeout(ctx, duration)
	defer stop()
	err = dt.Run(runCtx, period, constantSource(desired, len(modules)), func(tick int, err error) {
		if telemetry != nil {
			telemetry.Publish(snapshot(dt, tick, err))
		}
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("control loop: %w", err)
	}

	debug.Section("Final positions")
	positions, err := dt.Positions()
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}
	for i, p := range positions {
		fmt.Fprintf(out, "%-12s distance=%.3f m heading=%.1f°\n", modules[i].Name(), p.Distance, swerve.Degrees(p.Heading))
	}
	return nil
}

// newDeviceFactory returns simulated devices when mock_bus is set, devices
// on the serial bridge otherwise. The returned close func releases the port.
func newDeviceFactory(cfg *config.Config) (drivetrain.DeviceFactory, func(), error) {
	if cfg.Defaults.MockBus {
		debug.Info("Using SIMULATED motor controllers (mock_bus)")
		return func(i int, mc swerve.Config) (actuator.Motor, actuator.Motor, actuator.AbsoluteEncoder) {
			return actuator.NewSimMotor(mc.Name+"/drive", nil),
				actuator.NewSimMotor(mc.Name+"/steer", nil),
				&actuator.SimEncoder{}
		}, func() {}, nil
	}

	b, err := bus.Open(cfg.Bus.Port, cfg.Bus.BaudRate, cfg.BusTimeout())
	if err != nil {
		return nil, nil, err
	}
	closeBus := func() {
		if err := b.Close(); err != nil {
			log.Printf("closing bus failed: %v", err)
		}
	}
	return func(i int, _ swerve.Config) (actuator.Motor, actuator.Motor, actuator.AbsoluteEncoder) {
		m := cfg.Modules[i]
		return bus.NewMotor(b, m.DriveID), bus.NewMotor(b, m.SteerID), bus.NewEncoder(b, m.EncoderID)
	}, closeBus, nil
}

// constantSource commands the same state to every module on every tick.
func constantSource(s swerve.State, n int) drivetrain.Source {
	states := make([]swerve.State, n)
	for i := range states {
		states[i] = s
	}
	return func(int) []swerve.State { return states }
}

// snapshot reads the measured state of every module. It runs inside the
// control loop, which owns the devices.
func snapshot(dt *drivetrain.Drivetrain, tick int, tickErr error) web.Snapshot {
	snap := web.Snapshot{Tick: tick}
	if tickErr != nil {
		snap.Error = tickErr.Error()
	}
	for _, m := range dt.Modules() {
		mt := web.ModuleTelemetry{Name: m.Name()}
		if s, err := m.State(); err == nil {
			mt.SpeedMps = s.Speed
			mt.HeadingDeg = swerve.Degrees(s.Heading)
		}
		if p, err := m.Position(); err == nil {
			mt.DistanceM = p.Distance
		}
		snap.Modules = append(snap.Modules, mt)
	}
	return snap
}

// validateCLIOverrides checks the commanded state and run duration.
func validateCLIOverrides(speed, headingDeg float64, duration time.Duration) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || math.Abs(speed) > 10 {
		return fmt.Errorf("speed must be between -10 and 10 m/s, got %g", speed)
	}
	if math.IsNaN(headingDeg) || headingDeg < -180 || headingDeg > 180 {
		return fmt.Errorf("heading_deg must be between -180 and 180, got %g", headingDeg)
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be > 0, got %v", duration)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
