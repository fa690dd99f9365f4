package bus

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Bridge speaks to a small debug-bridge MCU over a serial port. The
// bridge owns the actual SPI wires and chip select; the host drives it
// one transaction at a time with checksummed frames. Delays shorter
// than the serial round trip are executed bridge-side so the sensor's
// microsecond settle times hold even over USB CDC latency.
//
// Frame layout, both directions:
//
//	[opcode][paylen][payload...][crc16 hi][crc16 lo]
//
// The checksum covers opcode through payload. A response opcode of
// opNak carries a one-byte bridge error code.
type Bridge struct {
	rw io.ReadWriteCloser
}

const (
	opWriteByte = 0x01
	opReadByte  = 0x02
	opBurst     = 0x03
	opDelay     = 0x04
	opCSAssert  = 0x05
	opCSRelease = 0x06
	opWaitIRQ   = 0x07

	opAck = 0x80
	opNak = 0x81
)

// BridgeConfig holds the serial-port settings for a bridge connection.
type BridgeConfig struct {
	Device string
	Baud   int

	// ReadTimeout bounds each serial read. Zero means one second.
	ReadTimeout time.Duration
}

// DefaultBaud matches the stock bridge firmware (rate is ignored on
// USB CDC bridges anyway).
const DefaultBaud = 250000

// OpenBridge opens the serial port and returns a connected bridge.
func OpenBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Second
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s: %w", cfg.Device, err)
	}
	return &Bridge{rw: port}, nil
}

// NewBridge wraps an already-open stream, used by tests and by callers
// with their own port handling.
func NewBridge(rw io.ReadWriteCloser) *Bridge {
	return &Bridge{rw: rw}
}

func (b *Bridge) Close() error {
	return b.rw.Close()
}

func (b *Bridge) sendFrame(op byte, payload []byte) error {
	frame := make([]byte, 0, 4+len(payload))
	frame = append(frame, op, byte(len(payload)))
	frame = append(frame, payload...)
	crc := crc16(frame)
	frame = append(frame, byte(crc>>8), byte(crc))
	_, err := b.rw.Write(frame)
	return err
}

func (b *Bridge) readFrame() (byte, []byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(b.rw, hdr[:]); err != nil {
		return 0, nil, err
	}
	body := make([]byte, int(hdr[1])+2)
	if _, err := io.ReadFull(b.rw, body); err != nil {
		return 0, nil, err
	}
	payload := body[:hdr[1]]
	got := uint16(body[len(body)-2])<<8 | uint16(body[len(body)-1])
	want := crc16(append(hdr[:], payload...))
	if got != want {
		return 0, nil, fmt.Errorf("frame checksum mismatch: got %#04x want %#04x", got, want)
	}
	return hdr[0], payload, nil
}

// roundTrip sends one request and reads its response, mapping bridge
// NAKs and transport failures to TransportError.
func (b *Bridge) roundTrip(ctx context.Context, name string, op byte, payload []byte, wantLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.sendFrame(op, payload); err != nil {
		return nil, WrapErr(name, err)
	}
	resp, data, err := b.readFrame()
	if err != nil {
		return nil, WrapErr(name, err)
	}
	if resp == opNak {
		code := byte(0xFF)
		if len(data) > 0 {
			code = data[0]
		}
		return nil, WrapErr(name, fmt.Errorf("bridge nak %#02x", code))
	}
	if resp != opAck || len(data) != wantLen {
		return nil, WrapErr(name, fmt.Errorf("unexpected response %#02x len %d", resp, len(data)))
	}
	return data, nil
}

func (b *Bridge) TxByte(ctx context.Context, v byte) error {
	_, err := b.roundTrip(ctx, "bridge write", opWriteByte, []byte{v}, 0)
	return err
}

func (b *Bridge) RxByte(ctx context.Context) (byte, error) {
	data, err := b.roundTrip(ctx, "bridge read", opReadByte, nil, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (b *Bridge) Burst(ctx context.Context, buf []byte) error {
	if len(buf) > 0xFF {
		return WrapErr("bridge burst", fmt.Errorf("burst length %d exceeds frame limit", len(buf)))
	}
	data, err := b.roundTrip(ctx, "bridge burst", opBurst, []byte{byte(len(buf))}, len(buf))
	if err != nil {
		return err
	}
	copy(buf, data)
	return nil
}

func (b *Bridge) Delay(ctx context.Context, d time.Duration) error {
	us := d.Microseconds()
	// Short settle times run on the bridge where timing is exact; long
	// waits run host-side so they stay abortable.
	if us > 0 && us <= 1000 {
		var payload [4]byte
		binary.BigEndian.PutUint32(payload[:], uint32(us))
		_, err := b.roundTrip(ctx, "bridge delay", opDelay, payload[:], 0)
		return err
	}
	return Sleep(ctx, d)
}

func (b *Bridge) Assert() error {
	_, err := b.roundTrip(context.Background(), "bridge cs assert", opCSAssert, nil, 0)
	return err
}

func (b *Bridge) Release() error {
	_, err := b.roundTrip(context.Background(), "bridge cs release", opCSRelease, nil, 0)
	return err
}

// Wait blocks until the bridge reports a motion-interrupt edge. The
// bridge answers each request as soon as it has seen an edge, so the
// host long-polls; cancellation is checked between polls.
func (b *Bridge) Wait(ctx context.Context) error {
	for {
		data, err := b.roundTrip(ctx, "bridge irq wait", opWaitIRQ, nil, 1)
		if err != nil {
			return err
		}
		if data[0] != 0 {
			return nil
		}
		if err := Sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
}
