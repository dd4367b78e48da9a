// Package periphlink adapts a periph.io I2C bus to smbus.Link
package periphlink

import (
	"io"

	"github.com/BertoldVdb/go-mcp23017/smbus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

type Link struct {
	smbus.Locks

	bus    i2c.Bus
	closer io.Closer
}

func New(bus i2c.Bus) *Link {
	return &Link{bus: bus}
}

// Open initializes the host drivers and opens the named bus. An empty name selects the first bus
// found.
func Open(name string) (*Link, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, err
	}

	return &Link{bus: bus, closer: bus}, nil
}

func (l *Link) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Link) String() string {
	return l.bus.String()
}

func (l *Link) WriteByteData(address uint8, register uint8, value uint8) error {
	if err := l.bus.Tx(uint16(address), []byte{register, value}, nil); err != nil {
		return &smbus.TransportError{Op: "write", Address: address, Register: register, Err: err}
	}
	return nil
}

func (l *Link) ReadByteData(address uint8, register uint8) (uint8, error) {
	read := make([]byte, 1)
	if err := l.bus.Tx(uint16(address), []byte{register}, read); err != nil {
		return 0, &smbus.TransportError{Op: "read", Address: address, Register: register, Err: err}
	}
	return read[0], nil
}

func (l *Link) ReadByte(address uint8) (uint8, error) {
	read := make([]byte, 1)
	if err := l.bus.Tx(uint16(address), nil, read); err != nil {
		return 0, &smbus.TransportError{Op: "read byte", Address: address, Err: err}
	}
	return read[0], nil
}
