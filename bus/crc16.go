package bus

// crc16 checksums one bridge frame (opcode through payload). Same
// CCITT-flavored polynomial the usual MCU serial stacks use, so a bridge
// firmware can share its existing checksum routine.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
