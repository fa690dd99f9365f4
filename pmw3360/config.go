package pmw3360

import (
	"context"
	"fmt"
)

// LiftOff selects the lift-off detection height. The values are the raw
// register codes the silicon accepts; there is no finer granularity.
type LiftOff byte

const (
	LiftOff2mm LiftOff = 0x02
	LiftOff3mm LiftOff = 0x03
)

// Resolution limits. Config1 encodes CPI in steps of 100, so requested
// values are clamped to the nearest encodable resolution and the
// effective value stays queryable.
const (
	MinCPI  = 100
	MaxCPI  = 12000
	cpiStep = 100
)

// Rotation limits of the angle-tune register, signed degrees.
const (
	MinAngle = -30
	MaxAngle = 30
)

// Config carries the user-supplied sensor settings. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// CPI is the requested resolution in counts per inch. Values
	// outside [MinCPI, MaxCPI] are clamped; see Device.EffectiveCPI.
	CPI int

	// Angle rotates every sample by the given degrees, MinAngle to
	// MaxAngle.
	Angle int

	// LiftOff is the lift detection height code.
	LiftOff LiftOff

	// SwapXY exchanges the axes after rotation. Applied in software at
	// decode time; the hardware axis-control register is not reliable
	// across silicon revisions.
	SwapXY bool

	// InvertX and InvertY negate the corresponding axis after the
	// swap. Software, like SwapXY.
	InvertX bool
	InvertY bool
}

// DefaultConfig returns the documented defaults: 800 CPI, no rotation,
// 2 mm lift-off, no axis transform.
func DefaultConfig() Config {
	return Config{
		CPI:     800,
		LiftOff: LiftOff2mm,
	}
}

// Validate checks the encodable ranges. Out-of-range CPI is not an
// error (it clamps); non-positive CPI, out-of-range angle and unknown
// lift-off codes are.
func (c Config) Validate() error {
	if c.CPI <= 0 {
		return fmt.Errorf("%w: cpi %d must be positive", ErrInvalidConfig, c.CPI)
	}
	if c.Angle < MinAngle || c.Angle > MaxAngle {
		return fmt.Errorf("%w: angle %d outside [%d, %d]", ErrInvalidConfig, c.Angle, MinAngle, MaxAngle)
	}
	switch c.LiftOff {
	case LiftOff2mm, LiftOff3mm:
	default:
		return fmt.Errorf("%w: unknown lift-off code %#02x", ErrInvalidConfig, byte(c.LiftOff))
	}
	return nil
}

// cpiEncode clamps cpi to the encodable range and returns the Config1
// register value together with the effective resolution it stands for.
func cpiEncode(cpi int) (byte, int) {
	if cpi < MinCPI {
		cpi = MinCPI
	}
	if cpi > MaxCPI {
		cpi = MaxCPI
	}
	// Round to the nearest step; 0x00 encodes 100 CPI.
	steps := (cpi + cpiStep/2) / cpiStep
	if steps < 1 {
		steps = 1
	}
	if steps > MaxCPI/cpiStep {
		steps = MaxCPI / cpiStep
	}
	return byte(steps - 1), steps * cpiStep
}

// applyConfig writes the validated settings to their registers and
// records the software transform for the decoder.
func (d *Device) applyConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	regCPI, effective := cpiEncode(cfg.CPI)
	if err := d.io.write(ctx, RegConfig1, regCPI); err != nil {
		return err
	}
	if err := d.io.write(ctx, RegAngleTune, byte(int8(cfg.Angle))); err != nil {
		return err
	}
	if err := d.io.write(ctx, RegLiftConfig, byte(cfg.LiftOff)); err != nil {
		return err
	}

	d.stateMu.Lock()
	d.cfg = cfg
	d.effectiveCPI = effective
	d.stateMu.Unlock()
	if effective != cfg.CPI {
		d.log.Infof("resolution clamped: requested %d cpi, applied %d cpi", cfg.CPI, effective)
	}
	return nil
}
