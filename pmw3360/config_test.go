package pmw3360

import (
	"errors"
	"testing"
)

func TestCPIEncode(t *testing.T) {
	cases := []struct {
		cpi           int
		wantReg       byte
		wantEffective int
	}{
		{100, 0x00, 100},
		{800, 0x07, 800},
		{5000, 0x31, 5000},
		{12000, 0x77, 12000},
		{50, 0x00, 100},      // below minimum clamps up
		{20000, 0x77, 12000}, // above maximum clamps down
		{12345, 0x77, 12000}, // clamp happens before rounding
		{849, 0x07, 800},     // rounds to nearest step
		{851, 0x08, 900},
	}
	for _, c := range cases {
		reg, eff := cpiEncode(c.cpi)
		if reg != c.wantReg || eff != c.wantEffective {
			t.Errorf("cpiEncode(%d) = (%#02x, %d), want (%#02x, %d)",
				c.cpi, reg, eff, c.wantReg, c.wantEffective)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()
	if err := base.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero cpi", func(c *Config) { c.CPI = 0 }},
		{"negative cpi", func(c *Config) { c.CPI = -200 }},
		{"angle too small", func(c *Config) { c.Angle = -31 }},
		{"angle too large", func(c *Config) { c.Angle = 31 }},
		{"bad lift-off", func(c *Config) { c.LiftOff = 0x09 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := base
			c.mod(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

// Out-of-range resolution is clamped, not rejected.
func TestConfigValidateClampedCPI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CPI = 90000
	if err := cfg.Validate(); err != nil {
		t.Errorf("clamped cpi rejected: %v", err)
	}
}
