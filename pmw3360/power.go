package pmw3360

import (
	"context"
	"fmt"
)

// powerUp brings the sensor from power-on or unknown state to the point
// where firmware can be loaded: clean serial-port state, full reset,
// post-reset settle, identity check, stale motion cleared.
func (d *Device) powerUp(ctx context.Context) error {
	// A CS toggle resynchronizes the sensor's serial port in case the
	// previous session died mid-transaction.
	if err := d.io.pulseCS(); err != nil {
		return err
	}

	if err := d.io.write(ctx, RegPowerUpReset, powerUpResetCmd); err != nil {
		return err
	}
	if err := d.io.t.Delay(ctx, tReset); err != nil {
		return err
	}

	pid, err := d.io.read(ctx, RegProductID)
	if err != nil {
		return err
	}
	if pid != ProductID {
		return fmt.Errorf("%w: got %#02x want %#02x", ErrBadProductID, pid, ProductID)
	}

	// Read and discard the motion and delta registers so a stale MOT
	// flag can't leak into the first real sample.
	for reg := byte(RegMotion); reg <= RegDeltaYH; reg++ {
		if _, err := d.io.read(ctx, reg); err != nil {
			return err
		}
	}
	return nil
}
