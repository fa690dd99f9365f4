// Package bustest provides test doubles for the sensor bus: a simulated
// PMW3360-style register file implementing bus.Transport and
// bus.ChipSelect, with hooks for error injection and a record of every
// transaction for asserting framing, timing and chip-select discipline.
package bustest

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Register addresses the simulator models. Kept local so the simulator
// depends only on the datasheet, not on the driver under test.
const (
	regProductID    = 0x00
	regMotion       = 0x02
	regDeltaYH      = 0x06
	regSROMEnable   = 0x13
	regSROMID       = 0x2A
	regPowerUpReset = 0x3A
	regMotionBurst  = 0x50
	regSROMBurst    = 0x62

	productID       = 0x42
	powerUpResetCmd = 0x5A
	sromInit        = 0x1D
	sromStart       = 0x18
)

// RegWrite is one recorded single-register write.
type RegWrite struct {
	Addr byte
	Val  byte
}

// Interval is one chip-select assertion window in transaction sequence
// numbers (monotonic, shared by all goroutines).
type Interval struct {
	Assert  int
	Release int
}

// Sensor simulates the sensor's serial register file. The zero value is
// not usable; use NewSensor.
type Sensor struct {
	mu sync.Mutex

	regs [0x80]byte

	// transaction state
	asserted bool
	haveAddr bool
	addr     byte
	isWrite  bool
	dataSeen bool

	// SROM download model
	sromPhase int // 0 idle, 1 after sromInit, 2 armed
	sromBytes int

	// SROMID is what the identifier register reads after a completed
	// upload. Force to 0 to simulate a corrupted download.
	SROMID byte

	frames [][]byte

	// error injection, consumed once
	NextReadErr  error
	NextWriteErr error
	NextBurstErr error
	NextDelayErr error

	// records
	Writes    []RegWrite
	Delays    []time.Duration
	intervals []Interval
	seq       int
	open      int // index into intervals of the open window

	// Violation is set if chip select was asserted while already
	// active, i.e. two transactions overlapped.
	Violation bool
}

// NewSensor returns a simulator with sane silicon defaults and a valid
// firmware identity of 0x04.
func NewSensor() *Sensor {
	s := &Sensor{SROMID: 0x04}
	s.regs[regProductID] = productID
	return s
}

var errNoCS = errors.New("bustest: bus activity without chip select")

// QueueFrame schedules one motion-burst frame. Frames are returned in
// FIFO order; with the queue empty a burst reads a no-motion frame.
func (s *Sensor) QueueFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.frames = append(s.frames, cp)
}

// Frame builds a motion-burst frame with the given deltas and the
// motion flag set.
func Frame(dx, dy int16) []byte {
	return []byte{
		0x80, 0x00,
		byte(dx), byte(uint16(dx) >> 8),
		byte(dy), byte(uint16(dy) >> 8),
		0x40,       // squal
		0x00,       // raw data sum
		0x60, 0x10, // pixel max/min
		0x01, 0x20, // shutter upper/lower
	}
}

// NoMotionFrame builds a frame with the motion flag clear and nonzero
// stale delta bytes, which a correct decoder must ignore.
func NoMotionFrame() []byte {
	f := Frame(0x55, 0x2A)
	f[0] = 0x00
	return f
}

// Intervals returns the recorded chip-select windows.
func (s *Sensor) Intervals() []Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Interval, len(s.intervals))
	copy(out, s.intervals)
	return out
}

// Reg reads back a simulated register directly, for assertions.
func (s *Sensor) Reg(addr byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[addr&0x7F]
}

func (s *Sensor) Assert() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asserted {
		s.Violation = true
		return errors.New("bustest: chip select already asserted")
	}
	s.asserted = true
	s.haveAddr = false
	s.dataSeen = false
	s.seq++
	s.intervals = append(s.intervals, Interval{Assert: s.seq, Release: -1})
	s.open = len(s.intervals) - 1
	return nil
}

func (s *Sensor) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.asserted {
		// Releasing an idle line is a no-op by contract.
		return nil
	}
	s.asserted = false
	s.seq++
	s.intervals[s.open].Release = s.seq
	// An SROM download ends when chip select rises after the burst.
	if s.haveAddr && s.isWrite && s.addr == regSROMBurst && s.sromPhase == 2 && s.sromBytes > 0 {
		s.sromPhase = 3
	}
	return nil
}

func (s *Sensor) TxByte(ctx context.Context, b byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.NextWriteErr; err != nil {
		s.NextWriteErr = nil
		return err
	}
	if !s.asserted {
		return errNoCS
	}
	if !s.haveAddr {
		s.haveAddr = true
		s.isWrite = b&0x80 != 0
		s.addr = b & 0x7F
		return nil
	}
	if !s.isWrite {
		return errors.New("bustest: data write in a read transaction")
	}
	if s.addr == regSROMBurst {
		if s.sromPhase == 2 {
			s.sromBytes++
		}
		return nil
	}
	if s.dataSeen {
		return errors.New("bustest: more than one data byte in a register write")
	}
	s.dataSeen = true
	s.applyWrite(s.addr, b)
	return nil
}

// applyWrite is called with the mutex held.
func (s *Sensor) applyWrite(addr, v byte) {
	s.Writes = append(s.Writes, RegWrite{Addr: addr, Val: v})
	s.regs[addr] = v
	switch {
	case addr == regPowerUpReset && v == powerUpResetCmd:
		// Reset drops the firmware and raises a stale motion flag.
		s.sromPhase = 0
		s.sromBytes = 0
		s.regs[regMotion] = 0x80
	case addr == regSROMEnable && v == sromInit:
		s.sromPhase = 1
		s.sromBytes = 0
	case addr == regSROMEnable && v == sromStart && s.sromPhase == 1:
		s.sromPhase = 2
	}
}

func (s *Sensor) RxByte(ctx context.Context) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.NextReadErr; err != nil {
		s.NextReadErr = nil
		return 0, err
	}
	if !s.asserted || !s.haveAddr {
		return 0, errNoCS
	}
	switch {
	case s.addr == regSROMID:
		if s.sromPhase == 3 {
			return s.SROMID, nil
		}
		return 0, nil
	case s.addr == regMotion:
		v := s.regs[regMotion]
		s.regs[regMotion] = 0 // reading clears the stale flag
		return v, nil
	default:
		return s.regs[s.addr], nil
	}
}

func (s *Sensor) Burst(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.NextBurstErr; err != nil {
		s.NextBurstErr = nil
		return err
	}
	if !s.asserted || !s.haveAddr {
		return errNoCS
	}
	if s.addr == regMotionBurst {
		frame := NoMotionFrame()
		if len(s.frames) > 0 {
			frame = s.frames[0]
			s.frames = s.frames[1:]
		}
		copy(buf, frame)
		return nil
	}
	for i := range buf {
		buf[i] = s.regs[(s.addr+byte(i))&0x7F]
	}
	return nil
}

// Delay records the requested settle time without sleeping, so tests
// run at full speed while still asserting the mandated delays.
func (s *Sensor) Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.NextDelayErr; err != nil {
		s.NextDelayErr = nil
		return err
	}
	s.Delays = append(s.Delays, d)
	return nil
}

// Asserted reports whether chip select is currently active.
func (s *Sensor) Asserted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asserted
}

// SROMBytes reports how many firmware bytes the download port received.
func (s *Sensor) SROMBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sromBytes
}
