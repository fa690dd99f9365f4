package bus

import (
	"context"
	"time"
)

// BitBang is a software half-duplex SPI bus over two GPIO pins: a clock
// output and a single shared data line that switches direction per phase.
// Clock idles high and the sensor captures on the second (rising) edge,
// so each bit is framed as data-setup, clock low, clock high.
//
// BitBang does not own chip select; frame transactions with a separate
// ChipSelect, the same way a hardware SPI peripheral would be used.
type BitBang struct {
	sck  OutputPin
	sdio BidirPin

	// half period between clock edges
	halfPeriod time.Duration

	// tick yields for one half period. Defaults to a busy wait sized by
	// halfPeriod; injectable for tests.
	tick func()
}

// DefaultBitPeriod clocks the bus at roughly 500 kHz, well inside the
// sensor's 4-wire timing budget even on slow GPIO.
const DefaultBitPeriod = 2 * time.Microsecond

// NewBitBang returns a bit-bang bus over sck and sdio and parks both
// lines idle (clock high, data released to input).
func NewBitBang(sck OutputPin, sdio BidirPin) *BitBang {
	b := &BitBang{
		sck:        sck,
		sdio:       sdio,
		halfPeriod: DefaultBitPeriod / 2,
	}
	b.tick = b.spinTick
	b.sck.Set(true)
	b.sdio.SetInput()
	return b
}

// SetBitPeriod overrides the clock period, for hosts whose GPIO access
// is slow enough to provide the inter-edge time on its own.
func (b *BitBang) SetBitPeriod(period time.Duration) {
	b.halfPeriod = period / 2
}

func (b *BitBang) spinTick() {
	deadline := time.Now().Add(b.halfPeriod)
	for time.Now().Before(deadline) {
	}
}

func (b *BitBang) writeByte(v byte) {
	b.sdio.SetOutput()
	for i := 7; i >= 0; i-- {
		b.sdio.Set((v>>uint(i))&1 == 1)
		b.tick()
		b.sck.Set(false)
		b.tick()
		b.sck.Set(true)
		b.tick()
	}
}

func (b *BitBang) readByte() byte {
	b.sdio.SetInput()
	var v byte
	for i := 7; i >= 0; i-- {
		b.sck.Set(false)
		b.tick()
		b.sck.Set(true)
		b.tick()
		if b.sdio.Get() {
			v |= 1 << uint(i)
		}
	}
	return v
}

func (b *BitBang) TxByte(ctx context.Context, v byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.writeByte(v)
	return nil
}

func (b *BitBang) RxByte(ctx context.Context) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.readByte(), nil
}

func (b *BitBang) Burst(ctx context.Context, buf []byte) error {
	for i := range buf {
		// One cancellation check per byte keeps aborts prompt without
		// tearing a byte mid-clock.
		if err := ctx.Err(); err != nil {
			return err
		}
		buf[i] = b.readByte()
	}
	return nil
}

func (b *BitBang) Delay(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}
