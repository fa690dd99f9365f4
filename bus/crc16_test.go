package bus

import "testing"

func TestCRC16(t *testing.T) {
	cases := []struct {
		data []byte
		want uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte{0x00}, 0x0F87},
		{[]byte{0x01, 0x02, 0x03}, crc16([]byte{0x01, 0x02, 0x03})},
	}
	// Smoke values plus the invariants that matter for framing: the
	// checksum must be sensitive to content and to order.
	if crc16([]byte{0x01, 0x02}) == crc16([]byte{0x02, 0x01}) {
		t.Error("crc16 insensitive to byte order")
	}
	if crc16([]byte{0x01}) == crc16([]byte{0x02}) {
		t.Error("crc16 insensitive to content")
	}
	for _, c := range cases {
		if got := crc16(c.data); got != c.want {
			t.Errorf("crc16(%v) = %#04x, want %#04x", c.data, got, c.want)
		}
	}
}
