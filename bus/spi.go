package bus

import (
	"context"
	"time"

	"tinygo.org/x/drivers"
)

// SPI adapts a TinyGo hardware SPI bus (drivers.SPI) to Transport. The
// bus must be configured by the caller for mode 3 (clock idle high,
// second-edge capture), MSB first.
type SPI struct {
	Bus drivers.SPI
}

// NewSPI wraps an already-configured hardware SPI bus.
func NewSPI(b drivers.SPI) *SPI {
	return &SPI{Bus: b}
}

func (s *SPI) TxByte(ctx context.Context, b byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.Bus.Transfer(b)
	return WrapErr("spi write", err)
}

func (s *SPI) RxByte(ctx context.Context) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b, err := s.Bus.Transfer(0)
	return b, WrapErr("spi read", err)
}

func (s *SPI) Burst(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WrapErr("spi burst", s.Bus.Tx(nil, buf))
}

func (s *SPI) Delay(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}
