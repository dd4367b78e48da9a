package i2c

// Device is one slave address on a Bus
type Device struct {
	bus     *Bus
	address uint16
}

func (b *Bus) GetDevice(address uint16) *Device {
	return &Device{
		bus:     b,
		address: address,
	}
}

func (d *Device) Transfer(writeBuf []byte, readBuf []byte) error {
	return d.bus.Transfer(d.address, writeBuf, readBuf)
}

func (d *Device) WriteReg8(reg uint8, value uint8) error {
	return d.Transfer([]byte{reg, value}, nil)
}

func (d *Device) ReadReg8(reg uint8) (uint8, error) {
	read := make([]byte, 1)
	if err := d.Transfer([]byte{reg}, read); err != nil {
		return 0, err
	}
	return read[0], nil
}
