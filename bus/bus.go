// Package bus defines the transport capabilities the sensor driver is
// written against, plus host-usable implementations of them.
//
// The driver core never touches hardware directly. It consumes a small
// capability set (byte transfer, microsecond delay, chip select, optional
// motion interrupt) so that callers can supply a hardware SPI bus, a
// bit-banged GPIO bus, a serial debug bridge, or a test double.
package bus

import (
	"context"
	"fmt"
	"time"
)

// Transport is the byte-level bus the sensor hangs off.
//
// Every method is a suspension point: implementations must honor context
// cancellation and return ctx.Err() without leaving the bus mid-byte.
type Transport interface {
	// TxByte clocks one byte out to the sensor, MSB first.
	TxByte(ctx context.Context, b byte) error

	// RxByte clocks one byte in from the sensor, MSB first.
	RxByte(ctx context.Context) (byte, error)

	// Burst fills buf with len(buf) consecutive bytes in a single
	// streamed transfer.
	Burst(ctx context.Context, buf []byte) error

	// Delay blocks for at least d. Used for the sensor's mandated
	// settle times, which are microsecond granularity.
	Delay(ctx context.Context, d time.Duration) error
}

// ChipSelect frames one bus transaction. Assert pulls the line active,
// Release returns it to idle. Callers must guarantee Release on every
// exit path, including cancellation; to make that cheap, Release on an
// already-idle line must be a no-op.
type ChipSelect interface {
	Assert() error
	Release() error
}

// InterruptLine is the optional motion-pending signal. Wait returns when
// the line reports an event, or with ctx.Err() on cancellation. Drivers
// without an interrupt line fall back to polling.
type InterruptLine interface {
	Wait(ctx context.Context) error
}

// OutputPin is a push-pull GPIO output.
type OutputPin interface {
	Set(high bool)
}

// InputPin is a GPIO input.
type InputPin interface {
	Get() bool
}

// BidirPin is a GPIO pin that can switch between input and output mode.
// Half-duplex SPI sensors with a single data line need this for the
// shared SDIO wire.
type BidirPin interface {
	SetOutput()
	SetInput()
	Set(high bool)
	Get() bool
}

// TransportError reports a bus-level failure. It wraps the underlying
// cause and names the operation that failed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// WrapErr wraps err as a TransportError unless it already is one or is
// a context error (cancellation is not a bus fault).
func WrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	if _, ok := err.(*TransportError); ok {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// Sleep is the default Delay implementation for host-side transports:
// a timer that aborts on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PinCS adapts an active-low chip-select GPIO to ChipSelect.
type PinCS struct {
	Pin OutputPin
}

// NewPinCS returns a ChipSelect over pin and drives it to idle.
func NewPinCS(pin OutputPin) *PinCS {
	pin.Set(true)
	return &PinCS{Pin: pin}
}

func (c *PinCS) Assert() error {
	c.Pin.Set(false)
	return nil
}

func (c *PinCS) Release() error {
	c.Pin.Set(true)
	return nil
}

// Notifier is a channel-backed InterruptLine for hosts that surface GPIO
// edges as events. Raise is safe to call from an edge callback; a raise
// while one is already pending is coalesced.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Raise records one pending edge.
func (n *Notifier) Raise() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *Notifier) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-n.ch:
		return nil
	}
}
