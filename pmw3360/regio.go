package pmw3360

import (
	"context"
	"sync"

	"pmwtrack/bus"
)

// regio frames single-register and burst transactions with the chip's
// mandated inter-phase delays. All sensor access funnels through here:
// the mutex is held for a whole framed transaction, so no two transfers
// can interleave their byte phases, and chip select is released on every
// exit path.
type regio struct {
	mu sync.Mutex
	t  bus.Transport
	cs bus.ChipSelect
}

func newRegio(t bus.Transport, cs bus.ChipSelect) *regio {
	return &regio{t: t, cs: cs}
}

// read performs one single-byte register read.
func (r *regio) read(ctx context.Context, addr byte) (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cs.Assert(); err != nil {
		return 0, bus.WrapErr("cs assert", err)
	}
	defer r.cs.Release()

	if err := r.t.TxByte(ctx, addr&0x7F); err != nil {
		return 0, bus.WrapErr("read addr", err)
	}
	if err := r.t.Delay(ctx, tSRAD); err != nil {
		return 0, bus.WrapErr("read settle", err)
	}
	v, err := r.t.RxByte(ctx)
	if err != nil {
		return 0, bus.WrapErr("read data", err)
	}
	if err := r.cs.Release(); err != nil {
		return 0, bus.WrapErr("cs release", err)
	}
	if err := r.t.Delay(ctx, tSRR); err != nil {
		return 0, bus.WrapErr("read gap", err)
	}
	return v, nil
}

// write performs one single-byte register write. The address is sent
// with its MSB set to mark the write direction.
func (r *regio) write(ctx context.Context, addr, v byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cs.Assert(); err != nil {
		return bus.WrapErr("cs assert", err)
	}
	defer r.cs.Release()

	if err := r.t.TxByte(ctx, addr|0x80); err != nil {
		return bus.WrapErr("write addr", err)
	}
	if err := r.t.TxByte(ctx, v); err != nil {
		return bus.WrapErr("write data", err)
	}
	if err := r.cs.Release(); err != nil {
		return bus.WrapErr("cs release", err)
	}
	return bus.WrapErr("write settle", r.t.Delay(ctx, tSWW))
}

// burstRead streams len(buf) bytes starting from addr in one
// transaction.
func (r *regio) burstRead(ctx context.Context, addr byte, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cs.Assert(); err != nil {
		return bus.WrapErr("cs assert", err)
	}
	defer r.cs.Release()

	if err := r.t.TxByte(ctx, addr&0x7F); err != nil {
		return bus.WrapErr("burst addr", err)
	}
	if err := r.t.Delay(ctx, tSRADMotBr); err != nil {
		return bus.WrapErr("burst settle", err)
	}
	if err := r.t.Burst(ctx, buf); err != nil {
		return bus.WrapErr("burst data", err)
	}
	if err := r.cs.Release(); err != nil {
		return bus.WrapErr("cs release", err)
	}
	return bus.WrapErr("burst exit", r.t.Delay(ctx, tBExit))
}

// burstWrite streams data to addr with chip select held for the whole
// upload and the mandated gap between consecutive bytes. Only the SROM
// download port uses this.
func (r *regio) burstWrite(ctx context.Context, addr byte, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cs.Assert(); err != nil {
		return bus.WrapErr("cs assert", err)
	}
	defer r.cs.Release()

	if err := r.t.TxByte(ctx, addr|0x80); err != nil {
		return bus.WrapErr("burst write addr", err)
	}
	for _, b := range data {
		if err := r.t.Delay(ctx, tSROMByte); err != nil {
			return bus.WrapErr("burst write gap", err)
		}
		if err := r.t.TxByte(ctx, b); err != nil {
			return bus.WrapErr("burst write data", err)
		}
	}
	if err := r.t.Delay(ctx, tSROMByte); err != nil {
		return bus.WrapErr("burst write gap", err)
	}
	return nil
}

// pulseCS toggles chip select once to force the sensor's serial port
// into a known state.
func (r *regio) pulseCS() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cs.Assert(); err != nil {
		return bus.WrapErr("cs assert", err)
	}
	if err := r.cs.Release(); err != nil {
		return bus.WrapErr("cs release", err)
	}
	return nil
}
