package mcp23017

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/BertoldVdb/go-mcp23017/smbus"
	"github.com/BertoldVdb/go-mcp23017/smbus/emulated"
)

// testLink wraps an emulated bus, counts the transfers and can corrupt or fail them
type testLink struct {
	bus *emulated.Bus

	corrupt  func(register uint8, value uint8) uint8
	writeErr error

	calls  int
	writes map[uint8]int
	reads  map[uint8]int
}

func newTestLink() *testLink {
	return &testLink{
		bus:    emulated.New(nil),
		writes: make(map[uint8]int),
		reads:  make(map[uint8]int),
	}
}

func (l *testLink) WriteByteData(address uint8, register uint8, value uint8) error {
	l.calls++
	l.writes[register]++

	if l.writeErr != nil {
		return &smbus.TransportError{Op: "write", Address: address, Register: register, Err: l.writeErr}
	}
	if l.corrupt != nil {
		value = l.corrupt(register, value)
	}
	return l.bus.WriteByteData(address, register, value)
}

func (l *testLink) ReadByteData(address uint8, register uint8) (uint8, error) {
	l.calls++
	l.reads[register]++

	return l.bus.ReadByteData(address, register)
}

func (l *testLink) reset() {
	l.calls = 0
	l.writes = make(map[uint8]int)
	l.reads = make(map[uint8]int)
}

func newDevice(t *testing.T, link smbus.Link, address uint8, modify func(o *Options)) *Device {
	t.Helper()

	options := DefaultOptions()
	options.Address = address
	options.RetryDelay = 0
	if modify != nil {
		modify(options)
	}

	d, err := New(link, options)
	check(t, err == nil, "New failed", err)
	return d
}

func TestNewValidation(t *testing.T) {
	link := newTestLink()

	_, err := New(link, &Options{Address: 0x80})
	check(t, errors.Is(err, ErrorInvalidOptions), "8 bit address accepted", err)

	_, err = New(link, &Options{Address: 0x20, WriteRetries: -1})
	check(t, errors.Is(err, ErrorInvalidOptions), "Negative retries accepted", err)

	_, err = New(link, &Options{Address: 0x20, RetryDelay: -time.Millisecond})
	check(t, errors.Is(err, ErrorInvalidOptions), "Negative delay accepted", err)

	d, err := New(link, nil)
	check(t, err == nil, err)
	check(t, d.Address() == DefaultAddress && d.writeRetries == DefaultWriteRetries && d.retryDelay == DefaultRetryDelay, "Defaults not applied")

	other, _ := New(link, nil)
	check(t, d.UID() != "" && d.UID() != other.UID(), "UIDs are not unique", d.UID(), other.UID())

	named, _ := New(link, &Options{Address: 0x20, UID: "left"})
	check(t, named.UID() == "left", "UID not kept")

	check(t, link.calls == 0, "New must not touch the bus")
}

func TestDigitalWriteReadPin3(t *testing.T) {
	d := newDevice(t, newTestLink(), 0x20, nil)

	check(t, d.DigitalWrite(3, true) == nil, "Write failed")
	v, err := d.DigitalRead(3)
	check(t, err == nil && v, "Pin 3 not high", err)

	check(t, d.DigitalWrite(3, false) == nil, "Write failed")
	v, err = d.DigitalRead(3)
	check(t, err == nil && !v, "Pin 3 not low", err)
}

func TestDigitalWriteReadAllPins(t *testing.T) {
	d := newDevice(t, newTestLink(), 0x20, nil)

	for _, pin := range Pins() {
		v, err := d.DigitalRead(pin)
		check(t, err == nil && !v, "Pin not low initially", pin)

		for _, state := range []bool{false, true, false} {
			check(t, d.DigitalWrite(pin, state) == nil, "Write failed", pin)
			v, err = d.DigitalRead(pin)
			check(t, err == nil && v == state, "Read back mismatch", pin, state)
		}
	}
}

func TestDigitalWriteAll(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x21, nil)

	all, err := d.DigitalReadAll()
	check(t, err == nil && all[0] == 0 && all[1] == 0, "Default is not off", all)

	check(t, d.DigitalWriteAll(false) == nil, "Write all failed")
	all, _ = d.DigitalReadAll()
	check(t, len(all) == 2 && all[0] == 0 && all[1] == 0, "Should be 0 if all set to false", all)

	link.reset()
	check(t, d.DigitalWriteAll(true) == nil, "Write all failed")
	check(t, link.writes[0x12] == 1 && link.writes[0x13] == 1, "Expected one write per bank", link.writes)

	all, _ = d.DigitalReadAll()
	check(t, all[0] == 0xFF && all[1] == 0xFF, "Should be 0xFF if all set to true", all)
}

func TestRandomToggleConsistency(t *testing.T) {
	d := newDevice(t, newTestLink(), 0x22, nil)
	expected := []uint8{0, 0}

	for i := 0; i < 100; i++ {
		pin := Pin(rand.Intn(NumPins))
		state := rand.Intn(2) == 1

		check(t, d.DigitalWrite(pin, state) == nil, "Write failed")
		expected[pin.Bank()] = setBit(expected[pin.Bank()], pin.Bit(), state)

		v, err := d.DigitalRead(pin)
		check(t, err == nil && v == state, pin, "read mismatch")

		all, err := d.DigitalReadAll()
		check(t, err == nil && all[0] == expected[0] && all[1] == expected[1], "Mismatch after toggling", pin, all, expected)
	}
}

func TestIdempotentWrite(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	check(t, d.DigitalWrite(GPB1, true) == nil, "Write failed")
	sum := link.bus.Checksum(0x20)
	first, _ := d.DigitalReadAll()

	check(t, d.DigitalWrite(GPB1, true) == nil, "Write failed")
	second, _ := d.DigitalReadAll()

	check(t, first[0] == second[0] && first[1] == second[1], "Second write changed the state")
	check(t, link.bus.Checksum(0x20) == sum, "Second write changed the registers")
}

func TestInvertIO(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, func(o *Options) { o.InvertIO = true })

	check(t, d.DigitalWrite(GPA2, true) == nil, "Write failed")
	raw, _ := link.bus.ReadByteData(0x20, 0x12)
	check(t, raw == 0x00, "Inverted HIGH must be transmitted as 0", raw)

	v, _ := d.DigitalRead(GPA2)
	check(t, v, "Inverted read of a 0 bit must be HIGH")

	check(t, d.DigitalWriteAll(true) == nil, "Write all failed")
	raw, _ = link.bus.ReadByteData(0x20, 0x13)
	check(t, raw == 0x00, "Inverted all HIGH must be transmitted as 0", raw)

	all, _ := d.DigitalReadAll()
	check(t, all[0] == 0xFF && all[1] == 0xFF, "Inverted read all", all)

	check(t, d.DigitalWriteAll(false) == nil, "Write all failed")
	all, _ = d.DigitalReadAll()
	check(t, all[0] == 0 && all[1] == 0, "Inverted read all", all)
}

func TestMaskingIgnoresInputs(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, func(o *Options) { o.WriteRetries = 3 })

	/* Bit 0 of GPIOA never holds what was written, like an input pin pulled by the outside */
	link.corrupt = func(register uint8, value uint8) uint8 {
		if register == 0x12 {
			return value ^ 0x01
		}
		return value
	}

	check(t, d.SetMode(GPA0, Input) == nil, "SetMode failed")

	link.reset()
	check(t, d.DigitalWrite(GPA1, true) == nil, "Write with input bit differing failed")
	check(t, link.writes[0x12] == 1, "Input bit caused a retry", link.writes[0x12])

	check(t, d.SetMode(GPA0, Output) == nil, "SetMode failed")

	link.reset()
	err := d.DigitalWrite(GPA1, true)
	check(t, errors.Is(err, ErrorWriteVerificationFailed), "Output bit difference not detected", err)
	check(t, link.writes[0x12] == 3 && link.reads[0x12] == 4, "Wrong number of attempts", link.writes[0x12], link.reads[0x12])
}

func TestWriteVerificationError(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x24, func(o *Options) { o.WriteRetries = 5 })
	link.corrupt = func(register uint8, value uint8) uint8 { return value ^ 0x80 }

	err := d.DigitalWrite(GPB0, true)

	var verr *WriteVerificationError
	check(t, errors.As(err, &verr), "Wrong error type", err)
	check(t, verr.Address == 0x24 && verr.Register == 0x13, "Wrong location", verr)
	check(t, verr.Attempted == 0x01 && verr.Observed == 0x81, "Wrong values", verr)
	check(t, verr.Attempts == 5, "Wrong attempts", verr)
	check(t, errors.Is(err, ErrorWriteVerificationFailed), "Not a verification failure")
}

func TestRetryRecovers(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, func(o *Options) {
		o.WriteRetries = 10
		o.RetryDelay = 5 * time.Millisecond
	})

	var sleeps []time.Duration
	d.sleep = func(delay time.Duration) { sleeps = append(sleeps, delay) }

	corrupt := emulated.Sequence(emulated.FlipMask(0x10), emulated.FlipMask(0x03))
	link.corrupt = func(register uint8, value uint8) uint8 {
		if register == 0x12 {
			return corrupt(value)
		}
		return value
	}

	check(t, d.DigitalWrite(GPA5, true) == nil, "Retry did not recover")
	check(t, link.writes[0x12] == 3, "Expected three transmissions", link.writes[0x12])
	check(t, len(sleeps) == 2 && sleeps[0] == 5*time.Millisecond, "Expected a delay before each repeated write", sleeps)

	v, _ := d.DigitalRead(GPA5)
	check(t, v, "Pin not high after recovery")
}

func TestZeroRetriesSkipsVerification(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, func(o *Options) { o.WriteRetries = 0 })
	link.corrupt = func(register uint8, value uint8) uint8 { return value ^ 0xFF }

	check(t, d.DigitalWrite(GPA0, true) == nil, "Unverified write failed")
	check(t, link.writes[0x12] == 1, "Expected exactly one transmission", link.writes)
	check(t, link.reads[0x12] == 1, "Expected only the read before the write", link.reads)
}

func TestWriteRejectsOtherRegisters(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	for _, register := range []uint8{0x00, 0x0A, 0x14, 0x15, 0x16, 0xFF} {
		err := d.Write(register, 0x55)
		check(t, errors.Is(err, ErrorInvalidRegister), "Register accepted", register, err)
	}
	check(t, link.calls == 0, "Rejected writes touched the bus", link.calls)

	check(t, d.Write(0x13, 0x55) == nil, "GPIOB write failed")
	v, _ := d.Read(0x13)
	check(t, v == 0x55, "GPIOB read back", v)

	_, err := d.Read(0x16)
	check(t, errors.Is(err, ErrorUnknownRegister), "Unmapped register read", err)
}

func TestInvalidPinNoTransport(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	check(t, errors.Is(d.DigitalWrite(16, true), ErrorInvalidPin), "DigitalWrite accepted pin 16")
	_, err := d.DigitalRead(16)
	check(t, errors.Is(err, ErrorInvalidPin), "DigitalRead accepted pin 16")
	check(t, errors.Is(d.SetMode(16, Output), ErrorInvalidPin), "SetMode accepted pin 16")
	_, err = d.GetMode(20)
	check(t, errors.Is(err, ErrorInvalidPin), "GetMode accepted pin 20")
	check(t, errors.Is(d.SetPullUp(16, true), ErrorInvalidPin), "SetPullUp accepted pin 16")

	check(t, link.calls == 0, "Invalid pins touched the bus", link.calls)
}

func TestTransportErrorPassthrough(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)
	cause := errors.New("Remote I/O error")
	link.writeErr = cause

	err := d.DigitalWrite(GPA0, true)
	check(t, errors.Is(err, cause) && errors.Is(err, smbus.ErrorTransport), "Transport error not passed through", err)
	check(t, !errors.Is(err, ErrorWriteVerificationFailed), "Transport error reported as verification failure")
	check(t, link.writes[0x12] == 1, "Transport errors must not be retried", link.writes)
}

func TestReadsAreNotRetried(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	d.DigitalRead(GPB3)
	check(t, link.calls == 1 && link.reads[0x13] == 1, "DigitalRead must read once", link.reads)

	link.reset()
	d.DigitalReadAll()
	check(t, link.calls == 2, "DigitalReadAll must read once per bank", link.reads)
}

func TestModes(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	check(t, d.SetModeAll(Input) == nil, "SetModeAll failed")
	modes, err := d.GetModeAll()
	check(t, err == nil && modes[0] == 0xFF && modes[1] == 0xFF, "All inputs", modes)

	check(t, d.SetMode(GPB4, Output) == nil, "SetMode failed")
	modes, _ = d.GetModeAll()
	check(t, modes[0] == 0xFF && modes[1] == 0xEF, "GPB4 output", modes)

	m, err := d.GetMode(GPB4)
	check(t, err == nil && m == Output, "GetMode GPB4", m)
	m, _ = d.GetMode(GPB5)
	check(t, m == Input, "GetMode GPB5", m)

	check(t, d.SetModeAll(Output) == nil, "SetModeAll failed")
	modes, _ = d.GetModeAll()
	check(t, modes[0] == 0 && modes[1] == 0, "All outputs", modes)
}

func TestAutoLow(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, func(o *Options) { o.AutoLow = true })

	check(t, d.SetModeAll(Input) == nil, "SetModeAll failed")
	check(t, d.DigitalWriteAll(true) == nil, "Write all failed")

	check(t, d.SetMode(GPB2, Output) == nil, "SetMode failed")
	all, _ := d.DigitalReadAll()
	check(t, all[0] == 0xFF && all[1] == 0xFB, "New output not driven low", all)

	check(t, d.SetMode(GPB3, Input) == nil, "SetMode failed")
	all, _ = d.DigitalReadAll()
	check(t, all[1] == 0xFB, "Input change touched GPIO", all)

	check(t, d.SetModeAll(Output) == nil, "SetModeAll failed")
	all, _ = d.DigitalReadAll()
	check(t, all[0] == 0 && all[1] == 0, "Outputs not driven low", all)
}

func TestNoAutoLow(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	check(t, d.DigitalWriteAll(true) == nil, "Write all failed")
	check(t, d.SetMode(GPA3, Output) == nil, "SetMode failed")

	all, _ := d.DigitalReadAll()
	check(t, all[0] == 0xFF, "Output level changed without AutoLow", all)
}

func TestPullUpAndPolarity(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	check(t, d.SetPullUp(GPA1, true) == nil && d.SetPullUp(GPB7, true) == nil, "SetPullUp failed")
	check(t, d.SetPullUp(GPA1, false) == nil, "SetPullUp failed")
	a, _ := link.bus.ReadByteData(0x20, 0x0C)
	b, _ := link.bus.ReadByteData(0x20, 0x0D)
	check(t, a == 0x00 && b == 0x80, "GPPU", a, b)

	check(t, d.SetPolarity(GPA6, true) == nil, "SetPolarity failed")
	a, _ = link.bus.ReadByteData(0x20, 0x02)
	check(t, a == 0x40, "IPOL", a)
}

func TestInterrupts(t *testing.T) {
	link := newTestLink()
	d := newDevice(t, link, 0x20, nil)

	link.bus.WriteByteData(0x20, 0x0E, 0x80)
	link.bus.WriteByteData(0x20, 0x0F, 0x01)

	flags, err := d.ReadInterruptFlags()
	check(t, err == nil, err)
	check(t, flags[0][0] && flags[1][7], "MSB must be index 0", flags)
	check(t, flags[0].Pins(BankA)[0] == GPA7 && flags[1].Pins(BankB)[0] == GPB0, "Flag pins", flags)

	link.bus.WriteByteData(0x20, 0x10, 0x0F)
	captures, err := d.ReadInterruptCaptures()
	check(t, err == nil, err)
	check(t, captures[0] == Flags{false, false, false, false, true, true, true, true}, "INTCAPA", captures[0])
	check(t, captures[1] == Flags{}, "INTCAPB", captures[1])

	check(t, d.SetInterruptAll(true) == nil, "SetInterruptAll failed")
	a, _ := link.bus.ReadByteData(0x20, 0x04)
	b, _ := link.bus.ReadByteData(0x20, 0x05)
	check(t, a == 0xFF && b == 0xFF, "GPINTEN", a, b)

	link.bus.WriteByteData(0x20, 0x0A, 0x02)
	check(t, d.SetInterruptMirror(true) == nil, "SetInterruptMirror failed")
	a, _ = link.bus.ReadByteData(0x20, 0x0A)
	b, _ = link.bus.ReadByteData(0x20, 0x0B)
	check(t, a == 0x42 && b == 0x40, "IOCON.MIRROR", a, b)

	check(t, d.SetInterruptMirror(false) == nil, "SetInterruptMirror failed")
	a, _ = link.bus.ReadByteData(0x20, 0x0A)
	check(t, a == 0x02, "IOCON.MIRROR clear", a)
}

func TestSharedAddressLock(t *testing.T) {
	bus := emulated.New(nil)
	var wg sync.WaitGroup

	/* Every device owns two pins of the same banks, concurrent read-modify-write must not lose bits */
	for i := 0; i < 8; i++ {
		d := newDevice(t, bus, 0x20, nil)
		pins := []Pin{Pin(i), Pin(i + 8)}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				for _, pin := range pins {
					if d.DigitalWrite(pin, n%2 == 1) != nil {
						t.Error("Concurrent write failed")
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	d := newDevice(t, bus, 0x20, nil)
	all, _ := d.DigitalReadAll()
	check(t, all[0] == 0xFF && all[1] == 0xFF, "Lost updates", all)
}
