// Package pmw3360 drives the PixArt PMW3360 optical motion sensor over
// a four-wire SPI-style bus (mode 3: clock idle high, second-edge
// capture). It owns the power-up and SROM-upload sequence, the register
// configuration, and the burst-read motion decoding, and exposes the
// result as an asynchronous stream of displacement samples.
package pmw3360

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pmwtrack/bus"
)

// State is the device lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateResetting
	StateLoadingFirmware
	StateConfiguring
	StateReady
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResetting:
		return "resetting"
	case StateLoadingFirmware:
		return "loading-firmware"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Device composes the power sequencer, firmware loader, configuration
// manager and motion decoder into one sensor instance. A Device is safe
// for concurrent use; bus transactions are serialized internally.
type Device struct {
	io  *regio
	irq bus.InterruptLine
	log *logrus.Entry

	stateMu      sync.Mutex
	state        State
	fault        error
	cfg          Config
	effectiveCPI int
	sromID       byte
}

// New builds a Device over the given transport and chip select. irq may
// be nil, which restricts the device to polling mode. The configuration
// is validated and applied during Initialize.
func New(t bus.Transport, cs bus.ChipSelect, irq bus.InterruptLine, cfg Config, log *logrus.Entry) *Device {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Device{
		io:    newRegio(t, cs),
		irq:   irq,
		log:   log.WithField("driver", "pmw3360"),
		state: StateUninitialized,
		cfg:   cfg,
	}
}

// State reports the current lifecycle state.
func (d *Device) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

// Fault returns the error that drove the device to StateFaulted, or nil.
func (d *Device) Fault() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.fault
}

// EffectiveCPI reports the resolution actually applied after clamping
// to the sensor's encodable range. Zero before the first successful
// configuration.
func (d *Device) EffectiveCPI() int {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.effectiveCPI
}

// SROMID reports the firmware identifier read back after upload, zero
// before the first successful load.
func (d *Device) SROMID() byte {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.sromID
}

// config snapshots the applied settings. The decoder reads them per
// burst, so a concurrent reconfiguration must not tear the struct.
func (d *Device) config() Config {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.cfg
}

func (d *Device) setState(s State) {
	d.stateMu.Lock()
	d.state = s
	d.fault = nil
	d.stateMu.Unlock()
	d.log.WithField("state", s.String()).Debug("state change")
}

func (d *Device) setFault(err error) {
	d.stateMu.Lock()
	d.state = StateFaulted
	d.fault = err
	d.stateMu.Unlock()
	d.log.WithError(err).Error("device faulted")
}

// Initialize runs the full bring-up: reset, firmware upload, register
// configuration. It must complete before any motion read. Calling it
// again re-runs the sequence from the reset step, which is also the
// only way out of StateFaulted. Errors during any phase fault the
// device and are returned.
func (d *Device) Initialize(ctx context.Context) error {
	d.setState(StateResetting)
	if err := d.powerUp(ctx); err != nil {
		d.setFault(err)
		return err
	}

	d.setState(StateLoadingFirmware)
	id, err := d.loadFirmware(ctx, d.SROMID())
	if err != nil {
		d.setFault(err)
		return err
	}
	d.stateMu.Lock()
	d.sromID = id
	d.stateMu.Unlock()

	d.setState(StateConfiguring)
	if err := d.applyConfig(ctx, d.config()); err != nil {
		d.setFault(err)
		return err
	}

	d.setState(StateReady)
	d.log.WithField("cpi", d.EffectiveCPI()).Info("sensor ready")
	return nil
}

// ApplyConfig re-applies settings on a running device, for callers that
// change resolution or transforms after bring-up. Only legal from
// StateReady.
func (d *Device) ApplyConfig(ctx context.Context, cfg Config) error {
	d.stateMu.Lock()
	if d.state != StateReady {
		d.stateMu.Unlock()
		return ErrNotReady
	}
	d.state = StateConfiguring
	d.stateMu.Unlock()

	if err := d.applyConfig(ctx, cfg); err != nil {
		// Validation or a register write failed; the sensor may hold a
		// partial configuration, so do not return to Ready silently.
		d.setFault(err)
		return err
	}
	d.setState(StateReady)
	return nil
}

// ReadMotion performs one burst read and returns the decoded sample.
// ErrNotReady before Initialize completes or after a fault. Transport
// errors are returned to the caller and leave the device Ready; retry
// policy belongs to the caller.
func (d *Device) ReadMotion(ctx context.Context) (Sample, error) {
	if d.State() != StateReady {
		return Sample{}, ErrNotReady
	}
	return d.readMotionBurst(ctx)
}

// Event is one entry of the motion stream. Err is a transient transport
// failure for that read; the stream continues afterwards.
type Event struct {
	Sample Sample
	Err    error
}

// StreamOptions selects how the stream paces its reads. The choice is
// caller policy, not driver policy.
type StreamOptions struct {
	// Interval is the polling period. Ignored when UseInterrupt is
	// set. Zero means DefaultPollInterval.
	Interval time.Duration

	// UseInterrupt gates each read on the motion interrupt line
	// instead of a timer. Requires an interrupt line at construction.
	UseInterrupt bool
}

// DefaultPollInterval is a mouse-friendly 1 kHz polling rate.
const DefaultPollInterval = time.Millisecond

// Stream produces motion events until ctx is canceled, then closes the
// channel. Samples are delivered in the order their burst reads
// completed, with at most one in flight. Transient read errors are
// delivered on the channel; they do not end the stream. The stream ends
// early only if the device leaves StateReady.
func (d *Device) Stream(ctx context.Context, opts StreamOptions) (<-chan Event, error) {
	if d.State() != StateReady {
		return nil, ErrNotReady
	}
	if opts.UseInterrupt && d.irq == nil {
		return nil, ErrNoInterruptLine
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}

	out := make(chan Event)
	go d.streamLoop(ctx, opts, out)
	return out, nil
}

func (d *Device) streamLoop(ctx context.Context, opts StreamOptions, out chan<- Event) {
	defer close(out)
	d.log.WithField("interrupt", opts.UseInterrupt).Info("stream started")
	for {
		if opts.UseInterrupt {
			if err := d.irq.Wait(ctx); err != nil {
				return
			}
		} else {
			if err := bus.Sleep(ctx, opts.Interval); err != nil {
				return
			}
		}

		sample, err := d.ReadMotion(ctx)
		if errors.Is(err, ErrNotReady) {
			// The device faulted or was torn down underneath the
			// stream; nothing more can be produced.
			d.log.Warn("stream ended: device left ready state")
			return
		}
		if err != nil && ctx.Err() != nil {
			return
		}
		if err != nil {
			d.log.WithError(err).Debug("transient read error")
		}

		select {
		case out <- Event{Sample: sample, Err: err}:
		case <-ctx.Done():
			return
		}
	}
}
