// Package mcp23017 drives the MCP23017 16 bit I/O expander over an SMBus link.
//
// The driver never caches chip state: every operation reads and writes the chip. Writes to the
// GPIO registers are read back and retried until the pins owned by outputs match, since the bus
// or the chip may drop or corrupt writes.
package mcp23017

import (
	"fmt"
	"sync"
	"time"

	"github.com/BertoldVdb/go-mcp23017/smbus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAddress      = 0x20
	MaxAddress          = 0x7F
	DefaultWriteRetries = 200
	DefaultRetryDelay   = 10 * time.Millisecond
)

// Options is a parameter struct for New. It can not be changed after creating the Device.
type Options struct {
	// Address is the 7 bit slave address
	Address uint8
	// UID identifies the device in logs. A random one is generated if empty.
	UID string

	// InvertIO swaps HIGH and LOW for all pin values that are written and read
	InvertIO bool

	// WriteRetries is the number of read back checks after a GPIO write. Every check after the
	// first one writes the value again. Zero disables verification.
	WriteRetries int
	// RetryDelay is the pause before each repeated write
	RetryDelay time.Duration

	// AutoLow drives pins LOW as soon as they are configured as output
	AutoLow bool

	Logger *logrus.Entry
}

// DefaultOptions returns the options used when nil is passed to New
func DefaultOptions() *Options {
	return &Options{
		Address:      DefaultAddress,
		WriteRetries: DefaultWriteRetries,
		RetryDelay:   DefaultRetryDelay,
	}
}

// Device is one MCP23017 chip
type Device struct {
	link smbus.Link
	lock sync.Locker

	address      uint8
	uid          string
	invertIO     bool
	writeRetries int
	retryDelay   time.Duration
	autoLow      bool

	log   *logrus.Entry
	sleep func(time.Duration)
}

// New creates a Device on the link. If the link implements smbus.AddressLocker, all Devices for
// the same address share one lock.
func New(link smbus.Link, options *Options) (*Device, error) {
	if options == nil {
		options = DefaultOptions()
	}

	if options.Address > MaxAddress {
		return nil, fmt.Errorf("%w: address 0x%02X is not a 7 bit address", ErrorInvalidOptions, options.Address)
	}
	if options.WriteRetries < 0 {
		return nil, fmt.Errorf("%w: negative WriteRetries", ErrorInvalidOptions)
	}
	if options.RetryDelay < 0 {
		return nil, fmt.Errorf("%w: negative RetryDelay", ErrorInvalidOptions)
	}

	d := &Device{
		link:         link,
		address:      options.Address,
		uid:          options.UID,
		invertIO:     options.InvertIO,
		writeRetries: options.WriteRetries,
		retryDelay:   options.RetryDelay,
		autoLow:      options.AutoLow,
		log:          options.Logger,
		sleep:        time.Sleep,
	}

	if d.uid == "" {
		d.uid = uuid.New().String()
	}
	if d.log == nil {
		d.log = logrus.NewEntry(logrus.StandardLogger())
	}
	d.log = d.log.WithFields(logrus.Fields{
		"prefix":  "mcp23017",
		"uid":     d.uid,
		"address": fmt.Sprintf("0x%02X", d.address),
	})

	if locker, ok := link.(smbus.AddressLocker); ok {
		d.lock = locker.AddressLock(d.address)
	} else {
		d.lock = &sync.Mutex{}
	}

	return d, nil
}

func (d *Device) Address() uint8 { return d.address }
func (d *Device) UID() string    { return d.uid }

func (d *Device) String() string {
	return fmt.Sprintf("MCP23017 %s@0x%02X", d.uid, d.address)
}

func (d *Device) read(register uint8) (uint8, error) {
	v, err := d.link.ReadByteData(d.address, register)
	if err != nil {
		return 0, err
	}

	d.log.Tracef("Read 0x%02X from register 0x%02X", v, register)
	return v, nil
}

func (d *Device) writeRaw(register uint8, value uint8) error {
	d.log.Tracef("Writing 0x%02X to register 0x%02X", value, register)
	return d.link.WriteByteData(d.address, register, value)
}

// ownershipMask reads the bits of register that are not driven by writes. Registers without a
// mask pair are fully owned.
func (d *Device) ownershipMask(register uint8) (uint8, error) {
	name, bank, err := Lookup(register)
	if err != nil {
		return 0, err
	}

	maskPair, ok := OwnershipMask(pairsByName[name])
	if !ok {
		return 0, nil
	}

	mask, err := d.read(maskPair.Register(bank))
	if err != nil {
		return 0, err
	}

	d.log.Tracef("Input mask for register 0x%02X is 0x%02X", register, mask)
	return mask, nil
}

func checkVerifiable(register uint8) error {
	if register != GPIO.A && register != GPIO.B {
		return fmt.Errorf("%w: 0x%02X", ErrorInvalidRegister, register)
	}
	return nil
}

// writeVerified writes value and checks it was stored, ignoring bits of input pins.
// The caller must hold d.lock.
func (d *Device) writeVerified(register uint8, value uint8) error {
	if err := checkVerifiable(register); err != nil {
		return err
	}

	mask, err := d.ownershipMask(register)
	if err != nil {
		return err
	}
	desired := value &^ mask

	if err := d.writeRaw(register, value); err != nil {
		return err
	}

	if d.writeRetries == 0 {
		return nil
	}

	var observed uint8
	for attempt := 1; attempt <= d.writeRetries; attempt++ {
		if attempt > 1 {
			if d.retryDelay > 0 {
				d.sleep(d.retryDelay)
			}
			if err := d.writeRaw(register, value); err != nil {
				return err
			}
		}

		observed, err = d.read(register)
		if err != nil {
			return err
		}

		if observed&^mask == desired {
			if attempt > 1 {
				d.log.Debugf("Needed %d attempts to write 0x%02X to register 0x%02X", attempt, value, register)
			}
			return nil
		}
	}

	return &WriteVerificationError{
		Address:   d.address,
		Register:  register,
		Attempted: value,
		Observed:  observed,
		Attempts:  d.writeRetries,
	}
}

// Read reads a register. Pins configured as input are read as well as outputs.
func (d *Device) Read(register uint8) (uint8, error) {
	if _, _, err := Lookup(register); err != nil {
		return 0, err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.read(register)
}

// Write writes value to one of the GPIO registers and verifies it, see Options.WriteRetries.
// Other registers are rejected with ErrorInvalidRegister.
func (d *Device) Write(register uint8, value uint8) error {
	if err := checkVerifiable(register); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.writeVerified(register, value)
}
