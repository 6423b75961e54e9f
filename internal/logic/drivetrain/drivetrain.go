package drivetrain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/SwerveGo/internal/debug"
	"github.com/cjeanneret/SwerveGo/internal/hw/actuator"
	"github.com/cjeanneret/SwerveGo/internal/logic/swerve"
)

// Enabler is the hardware enable line of the motor controllers.
type Enabler interface {
	Enable() error
	Disable() error
}

// DeviceFactory returns the devices of the i-th module. Each call must
// return devices owned by that module alone.
type DeviceFactory func(i int, cfg swerve.Config) (drive, steer actuator.Motor, enc actuator.AbsoluteEncoder)

// Source produces the module states for one tick, one per module in order.
// A nil slice stops every module.
type Source func(tick int) []swerve.State

// Drivetrain owns the modules of a robot and runs them from one control
// loop. It does no kinematics: states arrive already computed per module.
type Drivetrain struct {
	modules []*swerve.Module
	enable  Enabler
}

// NewModules constructs every module. All modules are attempted so that
// every configuration fault is reported at once; if any fails, none is
// returned and the robot must not be enabled.
func NewModules(cfgs []swerve.Config, devices DeviceFactory) ([]*swerve.Module, error) {
	modules := make([]*swerve.Module, 0, len(cfgs))
	var errs []error
	for i, cfg := range cfgs {
		drive, steer, enc := devices(i, cfg)
		m, err := swerve.New(cfg, drive, steer, enc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		modules = append(modules, m)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return modules, nil
}

// New returns a drivetrain over already constructed modules.
func New(modules []*swerve.Module, enable Enabler) *Drivetrain {
	return &Drivetrain{modules: modules, enable: enable}
}

// Modules returns the modules in configuration order.
func (d *Drivetrain) Modules() []*swerve.Module {
	return d.modules
}

// Enable raises the enable line.
func (d *Drivetrain) Enable() error {
	if d.enable == nil {
		return nil
	}
	return d.enable.Enable()
}

// Disable stops every module, then drops the enable line.
func (d *Drivetrain) Disable() error {
	err := d.StopAll()
	if d.enable != nil {
		err = errors.Join(err, d.enable.Disable())
	}
	return err
}

// Apply sends one desired state to each module. Every module is commanded
// even if an earlier one fails.
func (d *Drivetrain) Apply(states []swerve.State) error {
	if len(states) != len(d.modules) {
		return errors.Join(
			fmt.Errorf("drivetrain: got %d states for %d modules", len(states), len(d.modules)),
			d.StopAll(),
		)
	}
	var errs []error
	for i, m := range d.modules {
		if err := m.SetDesiredState(states[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every module.
func (d *Drivetrain) StopAll() error {
	var errs []error
	for _, m := range d.modules {
		if err := m.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResetPositions re-calibrates every module against its absolute encoder.
func (d *Drivetrain) ResetPositions() error {
	var errs []error
	for _, m := range d.modules {
		if err := m.ResetPosition(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// States returns the measured state of every module. Every module is read
// even if an earlier one fails; on any failure no states are returned.
func (d *Drivetrain) States() ([]swerve.State, error) {
	out := make([]swerve.State, len(d.modules))
	var errs []error
	for i, m := range d.modules {
		s, err := m.State()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = s
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Positions returns the odometry sample of every module, with the same
// error handling as States.
func (d *Drivetrain) Positions() ([]swerve.Position, error) {
	out := make([]swerve.Position, len(d.modules))
	var errs []error
	for i, m := range d.modules {
		p, err := m.Position()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = p
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Run calls source once per period and applies its states until ctx is
// done, then stops every module. A failed tick is logged and passed to
// onTick; the next tick retries. onTick may be nil.
func (d *Drivetrain) Run(ctx context.Context, period time.Duration, source Source, onTick func(tick int, err error)) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		var err error
		if states := source(tick); states == nil {
			err = d.StopAll()
		} else {
			err = d.Apply(states)
		}
		if err != nil {
			debug.Error(fmt.Errorf("tick %d: %w", tick, err))
		}
		if onTick != nil {
			onTick(tick, err)
		}

		if ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
				continue
			}
		}
		if err := d.StopAll(); err != nil {
			debug.Error(err)
		}
		return ctx.Err()
	}
}
