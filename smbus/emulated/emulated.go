// Package emulated provides an in-memory SMBus that stores the last byte written to every
// register of every address. In bugged mode it corrupts the stored bytes with random bit flips,
// which makes it useful to exercise the write verification of drivers.
package emulated

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/BertoldVdb/go-mcp23017/smbus"
	"github.com/sirupsen/logrus"
)

// Options is a parameter struct for New
type Options struct {
	// Name is only used for logging
	Name string

	// Bugged enables corruption of written values. If Corrupt is nil, RandomBitFlips is used
	Bugged bool
	// Corrupt replaces the default corruption, for example with a deterministic one
	Corrupt Corruptor
	// Seed for the default corruption. Zero means seeded from the clock.
	Seed int64

	// WriteThrough maps a register to a second register that receives the same stored value
	WriteThrough map[uint8]uint8

	Logger *logrus.Entry
}

// Bus is the emulated SMBus. It implements smbus.Link, smbus.ByteReader and smbus.AddressLocker.
type Bus struct {
	smbus.Locks

	mutex   sync.Mutex
	data    map[uint8]map[uint8]uint8
	pointer map[uint8]uint8
	writes  uint64

	corrupt      Corruptor
	writeThrough map[uint8]uint8

	log *logrus.Entry
}

// New creates an empty emulated bus
func New(options *Options) *Bus {
	if options == nil {
		options = &Options{}
	}

	b := &Bus{
		data:         make(map[uint8]map[uint8]uint8),
		pointer:      make(map[uint8]uint8),
		writeThrough: options.WriteThrough,
		log:          options.Logger,
	}

	name := options.Name
	if name == "" {
		name = "emulated"
	}
	if b.log == nil {
		b.log = logrus.NewEntry(logrus.StandardLogger())
	}
	b.log = b.log.WithField("prefix", "smbus-"+name)

	if options.Bugged {
		b.corrupt = options.Corrupt
		if b.corrupt == nil {
			seed := options.Seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			b.corrupt = RandomBitFlips(rand.New(rand.NewSource(seed)))
		}
		b.log.Info("Starting in bugged mode")
	}

	return b
}

// MCP23017WriteThrough latches GPIO writes into OLAT, like the chip does
func MCP23017WriteThrough() map[uint8]uint8 {
	return map[uint8]uint8{
		0x12: 0x14,
		0x13: 0x15,
	}
}

func (b *Bus) store(address uint8, register uint8, value uint8) {
	regs, ok := b.data[address]
	if !ok {
		regs = make(map[uint8]uint8)
		b.data[address] = regs
	}
	regs[register] = value
}

func (b *Bus) load(address uint8, register uint8) uint8 {
	/* Registers that were never written read as zero */
	return b.data[address][register]
}

// WriteByteData stores value, possibly corrupted, at the register
func (b *Bus) WriteByteData(address uint8, register uint8, value uint8) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	stored := value
	if b.corrupt != nil {
		stored = b.corrupt(value)
		if stored != value {
			b.log.Tracef("Corrupting write at 0x%02X register 0x%02X: 0x%02X instead of 0x%02X", address, register, stored, value)
		}
	}

	b.store(address, register, stored)
	if mirror, ok := b.writeThrough[register]; ok {
		b.store(address, mirror, stored)
	}
	b.pointer[address] = register
	b.writes++

	b.log.Tracef("Write at 0x%02X register 0x%02X: 0x%02X", address, register, stored)
	return nil
}

// ReadByteData returns the stored byte, 0 if it was never written
func (b *Bus) ReadByteData(address uint8, register uint8) (uint8, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	value := b.load(address, register)
	b.pointer[address] = register

	b.log.Tracef("Read from 0x%02X register 0x%02X: 0x%02X", address, register, value)
	return value, nil
}

// ReadByte reads the register that was last accessed on the address. Before any access this is
// register 0.
func (b *Bus) ReadByte(address uint8) (uint8, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	register := b.pointer[address]
	value := b.load(address, register)

	b.log.Tracef("Read from 0x%02X (pointer 0x%02X): 0x%02X", address, register, value)
	return value, nil
}

// Writes returns the number of writes performed on the bus
func (b *Bus) Writes() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.writes
}

// Snapshot is a copy of the register store: address -> register -> value
type Snapshot map[uint8]map[uint8]uint8

// Snapshot copies the current register store
func (b *Bus) Snapshot() Snapshot {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	s := make(Snapshot, len(b.data))
	for address, regs := range b.data {
		c := make(map[uint8]uint8, len(regs))
		for register, value := range regs {
			c[register] = value
		}
		s[address] = c
	}
	return s
}

// Restore replaces the register store with a copy of s
func (b *Bus) Restore(s Snapshot) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.data = make(map[uint8]map[uint8]uint8, len(s))
	for address, regs := range s {
		for register, value := range regs {
			b.store(address, register, value)
		}
	}
}

func (b *Bus) String() string {
	return fmt.Sprintf("emulated smbus (%d writes)", b.Writes())
}
