package mcp23017

// Flags holds the bits of one bank register. Index 0 is bit 7.
type Flags [BankBits]bool

func unpackFlags(v uint8) Flags {
	var f Flags
	for i := range f {
		f[i] = v&(1<<uint(BankBits-1-i)) != 0
	}
	return f
}

// Pins returns the pins of bank whose flag is set
func (f Flags) Pins(bank Bank) []Pin {
	var pins []Pin
	for i, set := range f {
		if set {
			pins = append(pins, Pin(int(bank)*BankBits+BankBits-1-i))
		}
	}
	return pins
}

func (d *Device) readFlags(pair RegisterPair) ([NumBanks]Flags, error) {
	var result [NumBanks]Flags

	values, err := d.readPair(pair)
	if err != nil {
		return result, err
	}

	for i, v := range values {
		result[i] = unpackFlags(v)
	}
	return result, nil
}

// ReadInterruptFlags reads INTF. A set flag means the pin caused the interrupt.
func (d *Device) ReadInterruptFlags() ([NumBanks]Flags, error) {
	return d.readFlags(INTF)
}

// ReadInterruptCaptures reads INTCAP, the port value at the time the interrupt occurred.
// Reading it clears the interrupt.
func (d *Device) ReadInterruptCaptures() ([NumBanks]Flags, error) {
	return d.readFlags(INTCAP)
}

// SetInterruptAll enables or disables interrupt-on-change for all pins
func (d *Device) SetInterruptAll(enabled bool) error {
	value := AllLow
	if enabled {
		value = AllHigh
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	for _, register := range GPINTEN.Registers() {
		if err := d.writeRaw(register, value); err != nil {
			return err
		}
	}
	return nil
}

// SetInterruptMirror connects the INTA and INTB outputs together
func (d *Device) SetInterruptMirror(enabled bool) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	for _, register := range IOCON.Registers() {
		current, err := d.read(register)
		if err != nil {
			return err
		}

		if err := d.writeRaw(register, setBit(current, SettingMIRROR, enabled)); err != nil {
			return err
		}
	}
	return nil
}
