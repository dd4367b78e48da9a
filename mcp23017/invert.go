package mcp23017

import "fmt"

// Invert flips the lowest width bits of v. v must fit in width bits and width can be at most 8.
func Invert(v int, width uint) (uint8, error) {
	if width > BankBits {
		return 0, fmt.Errorf("%w: width %d", ErrorInversionRange, width)
	}

	max := 1<<width - 1
	if v < 0 || v > max {
		return 0, fmt.Errorf("%w: 0x%X does not fit in %d bits", ErrorInversionRange, v, width)
	}

	return uint8(^v & max), nil
}

func (d *Device) invertByte(v uint8) uint8 {
	if !d.invertIO {
		return v
	}
	r, _ := Invert(int(v), BankBits)
	return r
}
