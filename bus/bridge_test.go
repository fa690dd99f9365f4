package bus

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// fakeMCU is a synchronous in-memory bridge firmware: every frame
// written to it is answered immediately into its read buffer.
type fakeMCU struct {
	regs     byte // value returned for read/burst bytes
	out      bytes.Buffer
	csLevel  bool
	irq      byte
	delays   []uint32
	corrupt  bool // flip a response checksum bit
	nakNext  bool
	received [][]byte
}

func (m *fakeMCU) respond(op byte, payload []byte) {
	frame := append([]byte{op, byte(len(payload))}, payload...)
	crc := crc16(frame)
	if m.corrupt {
		crc ^= 0x01
		m.corrupt = false
	}
	frame = append(frame, byte(crc>>8), byte(crc))
	m.out.Write(frame)
}

func (m *fakeMCU) Write(p []byte) (int, error) {
	// Requests arrive whole from Bridge.sendFrame.
	frame := append([]byte(nil), p...)
	m.received = append(m.received, frame)
	op, n := frame[0], int(frame[1])
	payload := frame[2 : 2+n]
	got := uint16(frame[len(frame)-2])<<8 | uint16(frame[len(frame)-1])
	if got != crc16(frame[:len(frame)-2]) {
		m.respond(opNak, []byte{0x01})
		return len(p), nil
	}
	if m.nakNext {
		m.nakNext = false
		m.respond(opNak, []byte{0x02})
		return len(p), nil
	}
	switch op {
	case opWriteByte:
		m.respond(opAck, nil)
	case opReadByte:
		m.respond(opAck, []byte{m.regs})
	case opBurst:
		data := make([]byte, payload[0])
		for i := range data {
			data[i] = m.regs + byte(i)
		}
		m.respond(opAck, data)
	case opDelay:
		us := uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
		m.delays = append(m.delays, us)
		m.respond(opAck, nil)
	case opCSAssert:
		m.csLevel = true
		m.respond(opAck, nil)
	case opCSRelease:
		m.csLevel = false
		m.respond(opAck, nil)
	case opWaitIRQ:
		m.respond(opAck, []byte{m.irq})
	default:
		m.respond(opNak, []byte{0xFF})
	}
	return len(p), nil
}

func (m *fakeMCU) Read(p []byte) (int, error) { return m.out.Read(p) }
func (m *fakeMCU) Close() error               { return nil }

func TestBridgeWriteRead(t *testing.T) {
	mcu := &fakeMCU{regs: 0x42}
	b := NewBridge(mcu)
	ctx := context.Background()

	if err := b.TxByte(ctx, 0x80|0x0F); err != nil {
		t.Fatalf("TxByte: %v", err)
	}
	v, err := b.RxByte(ctx)
	if err != nil {
		t.Fatalf("RxByte: %v", err)
	}
	if v != 0x42 {
		t.Errorf("read %#02x, want 0x42", v)
	}
}

func TestBridgeBurst(t *testing.T) {
	mcu := &fakeMCU{regs: 0x10}
	b := NewBridge(mcu)

	buf := make([]byte, 4)
	if err := b.Burst(context.Background(), buf); err != nil {
		t.Fatalf("Burst: %v", err)
	}
	for i, v := range buf {
		if v != 0x10+byte(i) {
			t.Errorf("buf[%d] = %#02x, want %#02x", i, v, 0x10+byte(i))
		}
	}
}

func TestBridgeChipSelect(t *testing.T) {
	mcu := &fakeMCU{}
	b := NewBridge(mcu)

	if err := b.Assert(); err != nil {
		t.Fatalf("Assert: %v", err)
	}
	if !mcu.csLevel {
		t.Error("bridge did not assert chip select")
	}
	if err := b.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if mcu.csLevel {
		t.Error("bridge did not release chip select")
	}
}

// Settle times at sensor scale run bridge-side for accuracy; long waits
// stay on the host.
func TestBridgeDelaySplit(t *testing.T) {
	mcu := &fakeMCU{}
	b := NewBridge(mcu)
	ctx := context.Background()

	if err := b.Delay(ctx, 160*time.Microsecond); err != nil {
		t.Fatalf("Delay: %v", err)
	}
	if len(mcu.delays) != 1 || mcu.delays[0] != 160 {
		t.Errorf("bridge delays = %v, want [160]", mcu.delays)
	}

	start := time.Now()
	if err := b.Delay(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Delay: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("long delay did not run host-side")
	}
	if len(mcu.delays) != 1 {
		t.Errorf("long delay went to the bridge: %v", mcu.delays)
	}
}

func TestBridgeWaitIRQ(t *testing.T) {
	mcu := &fakeMCU{irq: 1}
	b := NewBridge(mcu)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// With the line idle the wait must stay abortable.
	mcu.irq = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait on idle line = %v, want deadline exceeded", err)
	}
}

func TestBridgeNak(t *testing.T) {
	mcu := &fakeMCU{nakNext: true}
	b := NewBridge(mcu)

	err := b.TxByte(context.Background(), 0x00)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("nak produced %v, want TransportError", err)
	}
}

func TestBridgeChecksumMismatch(t *testing.T) {
	mcu := &fakeMCU{corrupt: true}
	b := NewBridge(mcu)

	err := b.TxByte(context.Background(), 0x00)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("corrupt response produced %v, want TransportError", err)
	}
}

func TestBridgeCancel(t *testing.T) {
	mcu := &fakeMCU{}
	b := NewBridge(mcu)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.TxByte(ctx, 0x00); !errors.Is(err, context.Canceled) {
		t.Errorf("TxByte = %v, want context.Canceled", err)
	}
}
