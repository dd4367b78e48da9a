// Package smbus defines the byte-register transport that chip drivers are written against.
//
// A Link is purely mechanical: it moves one byte to or from a register of a slave device and
// reports transport failures. It never retries and never interprets the data.
package smbus

import (
	"fmt"
	"sync"
)

type Error string

func (e Error) Error() string { return string(e) }

const ErrorTransport = Error("Transport failed")

// Link is a synchronous byte-register transport
type Link interface {
	WriteByteData(address uint8, register uint8, value uint8) error
	ReadByteData(address uint8, register uint8) (uint8, error)
}

// ByteReader is implemented by transports that support reading a device without sending a
// register address first. What is returned is defined by the transport.
type ByteReader interface {
	ReadByte(address uint8) (uint8, error)
}

// AddressLocker is implemented by transports that can hand out one lock per slave address.
// Drivers hold it across multi step operations so other users of the same chip cannot interleave.
type AddressLocker interface {
	AddressLock(address uint8) sync.Locker
}

// TransportError is returned by transports when a transfer fails
type TransportError struct {
	Op       string
	Address  uint8
	Register uint8
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s at 0x%02X register 0x%02X failed: %v", e.Op, e.Address, e.Register, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrorTransport }

// Locks is a table of per-address mutexes. The zero value is ready to use.
type Locks struct {
	mutex sync.Mutex
	locks map[uint8]*sync.Mutex
}

// AddressLock returns the mutex for address, creating it on first use
func (l *Locks) AddressLock(address uint8) sync.Locker {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.locks == nil {
		l.locks = make(map[uint8]*sync.Mutex)
	}

	m, ok := l.locks[address]
	if !ok {
		m = &sync.Mutex{}
		l.locks[address] = m
	}
	return m
}
