package pmw3360

import (
	"context"
	"fmt"
)

// loadFirmware uploads the embedded SROM image and verifies it took.
// prevID is the identifier seen on an earlier upload this session, or
// zero if none; a changed identifier is treated the same as a failed
// one, since it means the download was corrupted by noise.
//
// Not retried here: firmware corruption is a hardware-adjacent condition
// the caller must see and decide about.
func (d *Device) loadFirmware(ctx context.Context, prevID byte) (byte, error) {
	// Rest mode interferes with the download; disable it first.
	if err := d.io.write(ctx, RegConfig2, 0x00); err != nil {
		return 0, err
	}
	if err := d.io.write(ctx, RegSROMEnable, sromInit); err != nil {
		return 0, err
	}
	if err := d.io.t.Delay(ctx, tSROMSet); err != nil {
		return 0, err
	}
	if err := d.io.write(ctx, RegSROMEnable, sromStart); err != nil {
		return 0, err
	}

	d.log.WithField("bytes", len(sromImage)).Debug("uploading srom image")
	if err := d.io.burstWrite(ctx, RegSROMBurst, sromImage); err != nil {
		return 0, err
	}
	if err := d.io.t.Delay(ctx, tSROMDone); err != nil {
		return 0, err
	}

	id, err := d.io.read(ctx, RegSROMID)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: srom id reads zero", ErrFirmwareUpload)
	}
	if prevID != 0 && id != prevID {
		return 0, fmt.Errorf("%w: srom id changed %#02x -> %#02x", ErrFirmwareUpload, prevID, id)
	}
	d.log.WithField("srom_id", fmt.Sprintf("%#02x", id)).Info("firmware loaded")
	return id, nil
}
