package spi

import (
	"github.com/BertoldVdb/go-mcp23017/smbus"
)

// Transferer is a full duplex byte exchange, implemented by Device
type Transferer interface {
	Transfer(writeBuf []byte, readBuf []byte) error
}

// RegisterLink addresses MCP23S17 style chips sharing one chip select. The 7 bit address given to
// the smbus.Link methods selects the chip by its three hardware address pins (A2..A0), so the
// I2C addresses 0x20-0x27 of the MCP23017 map onto the same parts.
type RegisterLink struct {
	smbus.Locks

	device Transferer
}

const (
	opcodeBase      = 0x40
	opcodeRead      = 0x01
	hardwareAddress = 0x07
)

func NewRegisterLink(device Transferer) *RegisterLink {
	return &RegisterLink{device: device}
}

func opcode(address uint8, read bool) byte {
	op := byte(opcodeBase | (address&hardwareAddress)<<1)
	if read {
		op |= opcodeRead
	}
	return op
}

func (l *RegisterLink) WriteByteData(address uint8, register uint8, value uint8) error {
	if err := l.device.Transfer([]byte{opcode(address, false), register, value}, nil); err != nil {
		return &smbus.TransportError{Op: "write", Address: address, Register: register, Err: err}
	}
	return nil
}

func (l *RegisterLink) ReadByteData(address uint8, register uint8) (uint8, error) {
	read := make([]byte, 3)
	if err := l.device.Transfer([]byte{opcode(address, true), register, 0}, read); err != nil {
		return 0, &smbus.TransportError{Op: "read", Address: address, Register: register, Err: err}
	}
	return read[2], nil
}
