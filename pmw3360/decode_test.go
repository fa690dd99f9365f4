package pmw3360

import (
	"testing"

	"pmwtrack/bus/bustest"
)

func TestSignExtend16(t *testing.T) {
	cases := []struct {
		lo, hi byte
		want   int
	}{
		{0x00, 0x00, 0},
		{0x05, 0x00, 5},
		{0xFB, 0xFF, -5},
		{0xFF, 0x7F, 32767},
		{0x00, 0x80, -32768},
		{0xFF, 0xFF, -1},
	}
	for _, c := range cases {
		if got := signExtend16(c.lo, c.hi); got != c.want {
			t.Errorf("signExtend16(%#02x, %#02x) = %d, want %d", c.lo, c.hi, got, c.want)
		}
	}
}

func TestRoundHalfAway(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.5, 1},
		{-0.5, -1},
		{1.4, 1},
		{-1.4, -1},
		{2.5, 3},
		{-2.5, -3},
	}
	for _, c := range cases {
		if got := roundHalfAway(c.in); got != c.want {
			t.Errorf("roundHalfAway(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTransform(t *testing.T) {
	cases := []struct {
		name         string
		dx, dy       int
		cfg          Config
		wantX, wantY int
		tolerance    int
	}{
		{name: "identity", dx: 5, dy: -3, wantX: 5, wantY: -3},
		{name: "rotate 0 is identity", dx: 5, dy: -3, cfg: Config{Angle: 0}, wantX: 5, wantY: -3},
		{name: "rotate 90 maps to (-dy, dx)", dx: 5, dy: -3, cfg: Config{Angle: 90}, wantX: 3, wantY: 5, tolerance: 1},
		{name: "rotate -90 maps to (dy, -dx)", dx: 5, dy: -3, cfg: Config{Angle: -90}, wantX: -3, wantY: -5, tolerance: 1},
		{name: "invert x", dx: 5, dy: -3, cfg: Config{InvertX: true}, wantX: -5, wantY: -3},
		{name: "invert y", dx: 5, dy: -3, cfg: Config{InvertY: true}, wantX: 5, wantY: 3},
		{name: "swap", dx: 5, dy: -3, cfg: Config{SwapXY: true}, wantX: -3, wantY: 5},
		{name: "swap then invert x", dx: 5, dy: -3, cfg: Config{SwapXY: true, InvertX: true}, wantX: 3, wantY: 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gotX, gotY := transform(c.dx, c.dy, c.cfg)
			if abs(gotX-c.wantX) > c.tolerance || abs(gotY-c.wantY) > c.tolerance {
				t.Errorf("transform(%d, %d, %+v) = (%d, %d), want (%d, %d) ±%d",
					c.dx, c.dy, c.cfg, gotX, gotY, c.wantX, c.wantY, c.tolerance)
			}
		})
	}
}

// Same inputs must always produce the same output, for every transform
// combination.
func TestTransformDeterministic(t *testing.T) {
	inputs := [][2]int{{0, 0}, {5, -3}, {-127, 127}, {1000, -1000}}
	for _, angle := range []int{-30, -17, 0, 13, 30} {
		for _, swap := range []bool{false, true} {
			for _, ix := range []bool{false, true} {
				for _, iy := range []bool{false, true} {
					cfg := Config{Angle: angle, SwapXY: swap, InvertX: ix, InvertY: iy}
					for _, in := range inputs {
						x1, y1 := transform(in[0], in[1], cfg)
						x2, y2 := transform(in[0], in[1], cfg)
						if x1 != x2 || y1 != y2 {
							t.Fatalf("transform not deterministic for %v under %+v", in, cfg)
						}
					}
				}
			}
		}
	}
}

func TestDecodeFrameMotion(t *testing.T) {
	frame := bustest.Frame(5, -3)
	s, err := decodeFrame(frame, Config{})
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if !s.Motion {
		t.Error("motion flag not decoded")
	}
	if s.DX != 5 || s.DY != -3 {
		t.Errorf("got (%d, %d), want (5, -3)", s.DX, s.DY)
	}
	if s.SQual != 0x40 {
		t.Errorf("squal = %#02x, want 0x40", s.SQual)
	}
	if s.Shutter != 0x0120 {
		t.Errorf("shutter = %#04x, want 0x0120", s.Shutter)
	}
	if s.PixMax != 0x60 || s.PixMin != 0x10 {
		t.Errorf("pixel range = (%#02x, %#02x), want (0x60, 0x10)", s.PixMax, s.PixMin)
	}
}

// A frame without the motion bit is a valid zero sample even when the
// delta bytes hold stale garbage.
func TestDecodeFrameNoMotion(t *testing.T) {
	s, err := decodeFrame(bustest.NoMotionFrame(), Config{})
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if s.Motion {
		t.Error("motion flag set on no-motion frame")
	}
	if s.DX != 0 || s.DY != 0 {
		t.Errorf("got (%d, %d), want (0, 0)", s.DX, s.DY)
	}
}

func TestDecodeFrameBadLength(t *testing.T) {
	if _, err := decodeFrame(make([]byte, BurstLen-1), Config{}); err == nil {
		t.Error("short frame accepted")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
