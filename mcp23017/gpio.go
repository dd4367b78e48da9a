package mcp23017

// Mode is the direction of a pin, matching the IODIR bit
type Mode uint8

const (
	Output Mode = 0
	Input  Mode = 1
)

func (m Mode) String() string {
	if m == Input {
		return "input"
	}
	return "output"
}

func (m Mode) byteValue() uint8 {
	if m == Input {
		return AllInput
	}
	return AllOutput
}

func setBit(v uint8, bit uint8, set bool) uint8 {
	if set {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}

// updateBit changes one bit of an unverified register. The caller must hold d.lock.
func (d *Device) updateBit(pair RegisterPair, pin Pin, set bool) error {
	register, bit, err := Resolve(pair, pin)
	if err != nil {
		return err
	}

	current, err := d.read(register)
	if err != nil {
		return err
	}

	return d.writeRaw(register, setBit(current, bit, set))
}

func (d *Device) digitalWrite(pin Pin, state bool) error {
	register, bit, err := Resolve(GPIO, pin)
	if err != nil {
		return err
	}

	current, err := d.read(register)
	if err != nil {
		return err
	}

	return d.writeVerified(register, setBit(current, bit, state != d.invertIO))
}

func (d *Device) digitalWriteAll(state bool) error {
	value := AllLow
	if state {
		value = AllHigh
	}
	value = d.invertByte(value)

	for _, register := range GPIO.Registers() {
		if err := d.writeVerified(register, value); err != nil {
			return err
		}
	}
	return nil
}

// DigitalWrite sets one output pin HIGH (true) or LOW (false)
func (d *Device) DigitalWrite(pin Pin, state bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.digitalWrite(pin, state)
}

// DigitalWriteAll sets all pins of both banks to the same state
func (d *Device) DigitalWriteAll(state bool) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.digitalWriteAll(state)
}

// DigitalRead returns the level of one pin
func (d *Device) DigitalRead(pin Pin) (bool, error) {
	register, bit, err := Resolve(GPIO, pin)
	if err != nil {
		return false, err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	v, err := d.read(register)
	if err != nil {
		return false, err
	}

	return (v&(1<<bit) != 0) != d.invertIO, nil
}

// DigitalReadAll returns the GPIO register of every bank
func (d *Device) DigitalReadAll() ([]uint8, error) {
	result, err := d.readPair(GPIO)
	if err != nil {
		return nil, err
	}

	for i, v := range result {
		result[i] = d.invertByte(v)
	}
	return result, nil
}

// SetMode configures the direction of a pin. With AutoLow, new outputs are driven LOW.
func (d *Device) SetMode(pin Pin, mode Mode) error {
	if err := checkPin(pin); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.updateBit(IODIR, pin, mode == Input); err != nil {
		return err
	}

	if d.autoLow && mode == Output {
		return d.digitalWrite(pin, false)
	}
	return nil
}

// SetModeAll configures the direction of all pins
func (d *Device) SetModeAll(mode Mode) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	for _, register := range IODIR.Registers() {
		if err := d.writeRaw(register, mode.byteValue()); err != nil {
			return err
		}
	}

	if d.autoLow && mode == Output {
		return d.digitalWriteAll(false)
	}
	return nil
}

// GetMode reads the direction of a pin
func (d *Device) GetMode(pin Pin) (Mode, error) {
	register, bit, err := Resolve(IODIR, pin)
	if err != nil {
		return Output, err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	v, err := d.read(register)
	if err != nil {
		return Output, err
	}

	if v&(1<<bit) != 0 {
		return Input, nil
	}
	return Output, nil
}

// GetModeAll returns the IODIR register of every bank
func (d *Device) GetModeAll() ([]uint8, error) {
	return d.readPair(IODIR)
}

// SetPullUp enables or disables the internal pull-up of an input pin
func (d *Device) SetPullUp(pin Pin, enabled bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.updateBit(GPPU, pin, enabled)
}

// SetPolarity makes the chip report the inverted level of an input pin. This is independent of
// Options.InvertIO.
func (d *Device) SetPolarity(pin Pin, inverted bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.updateBit(IPOL, pin, inverted)
}

func (d *Device) readPair(pair RegisterPair) ([]uint8, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	result := make([]uint8, 0, NumBanks)
	for _, register := range pair.Registers() {
		v, err := d.read(register)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
