package emulated

import (
	"github.com/sigurn/crc8"
)

// ChecksumRegisters is the number of registers covered by Checksum, starting at register 0
const ChecksumRegisters = 0x16

var crcTable = crc8.MakeTable(crc8.CRC8)

// Checksum calculates a CRC-8 over the first ChecksumRegisters registers of an address. Equal
// register contents give equal checksums.
func (b *Bus) Checksum(address uint8) uint8 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var buf [ChecksumRegisters]byte
	for i := range buf {
		buf[i] = b.load(address, uint8(i))
	}

	return crc8.Checksum(buf[:], crcTable)
}
