package pmw3360

import (
	"context"
	"fmt"
	"math"
)

// Sample is one decoded motion reading after rotation and axis
// transforms. A Sample with Motion false is a valid zero reading, not
// an error.
type Sample struct {
	DX, DY int

	// Motion is the sensor's new-motion flag. When false the deltas
	// are zero by definition.
	Motion bool

	// Frame diagnostics, straight from the burst frame.
	SQual   uint8
	Shutter uint16
	PixMax  uint8
	PixMin  uint8
}

// signExtend16 reconstructs a displacement counter from its low and
// high bytes as a 16-bit two's-complement value, extended to int. Kept
// explicit so the bit behavior does not depend on implicit promotion.
func signExtend16(lo, hi byte) int {
	return int(int16(uint16(hi)<<8 | uint16(lo)))
}

// roundHalfAway rounds to the nearest integer with halves away from
// zero, so the rotated output is deterministic on both sides of the
// axes.
func roundHalfAway(v float64) int {
	if v >= 0 {
		return int(math.Floor(v + 0.5))
	}
	return int(math.Ceil(v - 0.5))
}

// transform applies the configured rotation, swap and inversion to a
// raw displacement pair. Pure function of its inputs.
func transform(dx, dy int, cfg Config) (int, int) {
	if cfg.Angle != 0 {
		rad := float64(cfg.Angle) * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)
		fx := float64(dx)*cos - float64(dy)*sin
		fy := float64(dx)*sin + float64(dy)*cos
		dx, dy = roundHalfAway(fx), roundHalfAway(fy)
	}
	if cfg.SwapXY {
		dx, dy = dy, dx
	}
	if cfg.InvertX {
		dx = -dx
	}
	if cfg.InvertY {
		dy = -dy
	}
	return dx, dy
}

// decodeFrame turns one raw burst frame into a Sample under cfg.
func decodeFrame(frame []byte, cfg Config) (Sample, error) {
	if len(frame) != BurstLen {
		return Sample{}, fmt.Errorf("pmw3360: burst frame length %d, want %d", len(frame), BurstLen)
	}
	s := Sample{
		Motion:  frame[burstMotion]&motionMOT != 0,
		SQual:   frame[burstSQUAL],
		Shutter: uint16(frame[burstShutterUpper])<<8 | uint16(frame[burstShutterLower]),
		PixMax:  frame[burstMaxRawData],
		PixMin:  frame[burstMinRawData],
	}
	if !s.Motion {
		// No movement since the last read. Valid, zero.
		return s, nil
	}
	dx := signExtend16(frame[burstDeltaXL], frame[burstDeltaXH])
	dy := signExtend16(frame[burstDeltaYL], frame[burstDeltaYH])
	s.DX, s.DY = transform(dx, dy, cfg)
	return s, nil
}

// readMotionBurst performs the burst transaction and decodes it.
// Transport failures propagate to the caller without faulting the
// device; a single missed read does not require a reset.
func (d *Device) readMotionBurst(ctx context.Context) (Sample, error) {
	var frame [BurstLen]byte
	if err := d.io.burstRead(ctx, RegMotionBurst, frame[:]); err != nil {
		return Sample{}, err
	}
	return decodeFrame(frame[:], d.config())
}
