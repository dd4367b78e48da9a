package mcp23017

import "fmt"

// Bank selects one of the two 8 bit ports
type Bank int

const (
	BankA Bank = 0
	BankB Bank = 1
)

func (b Bank) String() string {
	if b == BankA || b == BankB {
		return string(rune('A' + b))
	}
	return fmt.Sprintf("Bank(%d)", int(b))
}

const (
	NumBanks = 2
	BankBits = 8
	NumPins  = NumBanks * BankBits
)

// Pin is a logical pin, 0-7 are GPA0-GPA7 and 8-15 are GPB0-GPB7
type Pin uint8

const (
	GPA0 Pin = iota
	GPA1
	GPA2
	GPA3
	GPA4
	GPA5
	GPA6
	GPA7
	GPB0
	GPB1
	GPB2
	GPB3
	GPB4
	GPB5
	GPB6
	GPB7
)

func (p Pin) Bank() Bank { return Bank(p / BankBits) }
func (p Pin) Bit() uint8 { return uint8(p % BankBits) }

func (p Pin) String() string {
	if p >= NumPins {
		return fmt.Sprintf("Pin(%d)", uint8(p))
	}
	return fmt.Sprintf("GP%c%d", 'A'+rune(p.Bank()), p.Bit())
}

// Pins returns all pins in order
func Pins() []Pin {
	pins := make([]Pin, NumPins)
	for i := range pins {
		pins[i] = Pin(i)
	}
	return pins
}

// RegisterPair is a register that exists once per bank. A is always the lower address.
type RegisterPair struct {
	Name string
	A    uint8
	B    uint8
}

// Register returns the address of the register for the given bank
func (r RegisterPair) Register(bank Bank) uint8 {
	if bank == BankB {
		return r.B
	}
	return r.A
}

// Registers returns the addresses for bank A and B
func (r RegisterPair) Registers() [NumBanks]uint8 {
	return [NumBanks]uint8{r.A, r.B}
}

// Register layout with IOCON.BANK cleared (the power-on default)
var (
	IODIR   = RegisterPair{"IODIR", 0x00, 0x01}
	IPOL    = RegisterPair{"IPOL", 0x02, 0x03}
	GPINTEN = RegisterPair{"GPINTEN", 0x04, 0x05}
	DEFVAL  = RegisterPair{"DEFVAL", 0x06, 0x07}
	INTCON  = RegisterPair{"INTCON", 0x08, 0x09}
	IOCON   = RegisterPair{"IOCON", 0x0A, 0x0B}
	GPPU    = RegisterPair{"GPPU", 0x0C, 0x0D}
	INTF    = RegisterPair{"INTF", 0x0E, 0x0F}
	INTCAP  = RegisterPair{"INTCAP", 0x10, 0x11}
	GPIO    = RegisterPair{"GPIO", 0x12, 0x13}
	OLAT    = RegisterPair{"OLAT", 0x14, 0x15}
)

// IOCON bit positions
const (
	SettingINTPOL = 1
	SettingODR    = 2
	SettingHAEN   = 3
	SettingDISSLW = 4
	SettingSEQOP  = 5
	SettingMIRROR = 6
	SettingBANK   = 7
)

// Byte values to write to a whole bank
const (
	AllHigh   uint8 = 0xFF
	AllLow    uint8 = 0x00
	AllInput  uint8 = 0xFF
	AllOutput uint8 = 0x00
)

type registerLocation struct {
	pair RegisterPair
	bank Bank
}

var (
	registerPairs = [...]RegisterPair{IODIR, IPOL, GPINTEN, DEFVAL, INTCON, IOCON, GPPU, INTF, INTCAP, GPIO, OLAT}

	pairsByName        = make(map[string]RegisterPair, len(registerPairs))
	registersByAddress = make(map[uint8]registerLocation, NumBanks*len(registerPairs))

	// A set bit in the mask register marks a pin as input: it is not driven by writes to the
	// owned register.
	ownershipMasks = map[string]RegisterPair{
		GPIO.Name: IODIR,
	}
)

func init() {
	for _, pair := range registerPairs {
		pairsByName[pair.Name] = pair
		registersByAddress[pair.A] = registerLocation{pair: pair, bank: BankA}
		registersByAddress[pair.B] = registerLocation{pair: pair, bank: BankB}
	}
}

// RegisterPairs returns all register pairs in address order
func RegisterPairs() []RegisterPair {
	r := make([]RegisterPair, len(registerPairs))
	copy(r, registerPairs[:])
	return r
}

// PairByName finds a register pair by its datasheet name
func PairByName(name string) (RegisterPair, error) {
	pair, ok := pairsByName[name]
	if !ok {
		return RegisterPair{}, fmt.Errorf("%w: %q", ErrorUnknownRegister, name)
	}
	return pair, nil
}

// Lookup returns the pair name and bank of a register address
func Lookup(register uint8) (string, Bank, error) {
	loc, ok := registersByAddress[register]
	if !ok {
		return "", 0, fmt.Errorf("%w: 0x%02X", ErrorUnknownRegister, register)
	}
	return loc.pair.Name, loc.bank, nil
}

func checkPin(pin Pin) error {
	if pin >= NumPins {
		return fmt.Errorf("%w: %d", ErrorInvalidPin, uint8(pin))
	}
	return nil
}

// Resolve returns the register address and bit offset of pin within pair
func Resolve(pair RegisterPair, pin Pin) (uint8, uint8, error) {
	if known, ok := pairsByName[pair.Name]; !ok || known != pair {
		return 0, 0, fmt.Errorf("%w: %v", ErrorUnknownRegister, pair)
	}
	if err := checkPin(pin); err != nil {
		return 0, 0, err
	}

	return pair.Register(pin.Bank()), pin.Bit(), nil
}

// PinAt is the inverse of Resolve
func PinAt(register uint8, bit uint8) (Pin, error) {
	_, bank, err := Lookup(register)
	if err != nil {
		return 0, err
	}
	if bit >= BankBits {
		return 0, fmt.Errorf("%w: bit %d", ErrorInvalidPin, bit)
	}

	return Pin(int(bank)*BankBits + int(bit)), nil
}

// OwnershipMask returns the register pair whose bits mark pins of pair as not owned by writers
func OwnershipMask(pair RegisterPair) (RegisterPair, bool) {
	mask, ok := ownershipMasks[pair.Name]
	return mask, ok
}
