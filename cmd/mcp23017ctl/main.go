// Command mcp23017ctl reads and writes the pins of an MCP23017 from the shell.
//
//	mcp23017ctl -bus 1 -address 0x21 mode GPA3 out
//	mcp23017ctl -bus 1 -address 0x21 write GPA3 1
//	mcp23017ctl -emulate -bugged -state regs.gob dump
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BertoldVdb/go-mcp23017/linux-pio/i2c"
	"github.com/BertoldVdb/go-mcp23017/linux-pio/spi"
	"github.com/BertoldVdb/go-mcp23017/logrusconfig"
	"github.com/BertoldVdb/go-mcp23017/mcp23017"
	"github.com/BertoldVdb/go-mcp23017/smbus"
	"github.com/BertoldVdb/go-mcp23017/smbus/emulated"
	"github.com/BertoldVdb/go-mcp23017/smbus/periphlink"
	"github.com/sirupsen/logrus"
)

type config struct {
	bus     int
	spi     string
	periph  string
	emulate bool
	bugged  bool
	seed    int64
	state   string

	address string
	retries int
	delay   time.Duration
	invert  bool
	autoLow bool
}

var errUsage = errors.New("usage: mcp23017ctl [flags] mode|modeall|write|writeall|read|readall|pullup|flags|captures|reg|dump [args]")

func newFlagSet(cfg *config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("mcp23017ctl", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.IntVar(&cfg.bus, "bus", 1, "Linux I2C bus number (/dev/i2c-N)")
	fs.StringVar(&cfg.spi, "spi", "", "Use an MCP23S17 on /dev/spidevB.D instead of I2C, given as B.D")
	fs.StringVar(&cfg.periph, "periph", "", "Open the bus through periph.io with this name instead of /dev/i2c-N")
	fs.BoolVar(&cfg.emulate, "emulate", false, "Use an in-memory emulated bus")
	fs.BoolVar(&cfg.bugged, "bugged", false, "Emulated bus randomly corrupts written bytes")
	fs.Int64Var(&cfg.seed, "seed", 0, "Seed for the bugged emulator, 0 uses the clock")
	fs.StringVar(&cfg.state, "state", "", "File that keeps the emulated registers between runs")

	fs.StringVar(&cfg.address, "address", "0x20", "7 bit device address")
	fs.IntVar(&cfg.retries, "retries", mcp23017.DefaultWriteRetries, "Write verification attempts, 0 disables verification")
	fs.DurationVar(&cfg.delay, "delay", mcp23017.DefaultRetryDelay, "Delay before repeating a write")
	fs.BoolVar(&cfg.invert, "invert", false, "Invert all pin values")
	fs.BoolVar(&cfg.autoLow, "autolow", false, "Drive pins LOW when they become outputs")

	logrusconfig.InitParam(fs)
	return fs
}

// session is an open link with its cleanup
type session struct {
	link    smbus.Link
	emu     *emulated.Bus
	persist *emulated.Persist
	close   func() error
}

func (s *session) finish() error {
	var err error
	if s.persist != nil {
		err = s.persist.Save()
	}
	if s.close != nil {
		if cerr := s.close(); err == nil {
			err = cerr
		}
	}
	return err
}

func openSession(cfg *config, log *logrus.Entry) (*session, error) {
	switch {
	case cfg.emulate:
		bus := emulated.New(&emulated.Options{
			Name:         "cli",
			Bugged:       cfg.bugged,
			Seed:         cfg.seed,
			WriteThrough: emulated.MCP23017WriteThrough(),
			Logger:       log,
		})
		s := &session{link: bus, emu: bus}

		if cfg.state != "" {
			s.persist = &emulated.Persist{Filename: cfg.state, Bus: bus}
			if err := s.persist.Load(); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("loading %s: %w", cfg.state, err)
			}
		}
		return s, nil

	case cfg.spi != "":
		var busID, deviceID int
		if _, err := fmt.Sscanf(cfg.spi, "%d.%d", &busID, &deviceID); err != nil {
			return nil, fmt.Errorf("invalid -spi %q: %w", cfg.spi, err)
		}
		dev, err := spi.OpenDevice(busID, deviceID)
		if err != nil {
			return nil, err
		}
		return &session{link: spi.NewRegisterLink(dev), close: dev.Close}, nil

	case cfg.periph != "":
		link, err := periphlink.Open(cfg.periph)
		if err != nil {
			return nil, err
		}
		return &session{link: link, close: link.Close}, nil

	default:
		bus, err := i2c.OpenBus(cfg.bus)
		if err != nil {
			return nil, err
		}
		return &session{link: bus, close: bus.Close}, nil
	}
}

func parsePin(s string) (mcp23017.Pin, error) {
	for _, pin := range mcp23017.Pins() {
		if strings.EqualFold(pin.String(), s) {
			return pin, nil
		}
	}

	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", mcp23017.ErrorInvalidPin, s)
	}
	return mcp23017.Pin(n), nil
}

func parseState(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "high", "on":
		return true, nil
	case "0", "low", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid state %q", s)
}

func parseMode(s string) (mcp23017.Mode, error) {
	switch strings.ToLower(s) {
	case "in", "input":
		return mcp23017.Input, nil
	case "out", "output":
		return mcp23017.Output, nil
	}
	return mcp23017.Output, fmt.Errorf("invalid mode %q", s)
}

func printFlags(out io.Writer, flags [mcp23017.NumBanks]mcp23017.Flags) {
	for bank, f := range flags {
		fmt.Fprintf(out, "%s:", mcp23017.Bank(bank))
		for _, set := range f {
			if set {
				fmt.Fprint(out, " 1")
			} else {
				fmt.Fprint(out, " 0")
			}
		}
		fmt.Fprintln(out, "  ", f.Pins(mcp23017.Bank(bank)))
	}
}

func command(d *mcp23017.Device, s *session, out io.Writer, args []string) error {
	need := func(n int) error {
		if len(args) != n+1 {
			return errUsage
		}
		return nil
	}

	switch args[0] {
	case "mode", "write", "pullup":
		if err := need(2); err != nil {
			return err
		}
		pin, err := parsePin(args[1])
		if err != nil {
			return err
		}

		if args[0] == "mode" {
			mode, err := parseMode(args[2])
			if err != nil {
				return err
			}
			return d.SetMode(pin, mode)
		}

		state, err := parseState(args[2])
		if err != nil {
			return err
		}
		if args[0] == "write" {
			return d.DigitalWrite(pin, state)
		}
		return d.SetPullUp(pin, state)

	case "modeall":
		if err := need(1); err != nil {
			return err
		}
		mode, err := parseMode(args[1])
		if err != nil {
			return err
		}
		return d.SetModeAll(mode)

	case "writeall":
		if err := need(1); err != nil {
			return err
		}
		state, err := parseState(args[1])
		if err != nil {
			return err
		}
		return d.DigitalWriteAll(state)

	case "read":
		if err := need(1); err != nil {
			return err
		}
		pin, err := parsePin(args[1])
		if err != nil {
			return err
		}
		v, err := d.DigitalRead(pin)
		if err != nil {
			return err
		}
		if v {
			fmt.Fprintln(out, pin, 1)
		} else {
			fmt.Fprintln(out, pin, 0)
		}
		return nil

	case "readall":
		if err := need(0); err != nil {
			return err
		}
		values, err := d.DigitalReadAll()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "GPIOA=0x%02X GPIOB=0x%02X\n", values[0], values[1])
		return nil

	case "flags", "captures":
		if err := need(0); err != nil {
			return err
		}
		read := d.ReadInterruptFlags
		if args[0] == "captures" {
			read = d.ReadInterruptCaptures
		}
		flags, err := read()
		if err != nil {
			return err
		}
		printFlags(out, flags)
		return nil

	case "reg":
		if err := need(1); err != nil {
			return err
		}
		pair, err := mcp23017.PairByName(strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		return printPair(d, out, pair)

	case "dump":
		if err := need(0); err != nil {
			return err
		}
		for _, pair := range mcp23017.RegisterPairs() {
			if err := printPair(d, out, pair); err != nil {
				return err
			}
		}
		if s.emu != nil {
			fmt.Fprintf(out, "CRC8     0x%02X\n", s.emu.Checksum(d.Address()))
		}
		return nil
	}

	return errUsage
}

func printPair(d *mcp23017.Device, out io.Writer, pair mcp23017.RegisterPair) error {
	a, err := d.Read(pair.A)
	if err != nil {
		return err
	}
	b, err := d.Read(pair.B)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-8s A=0x%02X B=0x%02X\n", pair.Name, a, b)
	return nil
}

func run(args []string, out io.Writer, logOut io.Writer) error {
	var cfg config
	fs := newFlagSet(&cfg, logOut)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	log, err := logrusconfig.GetLogger(logrus.InfoLevel)
	if err != nil {
		return err
	}
	log.Logger.SetOutput(logOut)

	address, err := strconv.ParseUint(cfg.address, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", cfg.address, err)
	}

	s, err := openSession(&cfg, log)
	if err != nil {
		return err
	}

	d, err := mcp23017.New(s.link, &mcp23017.Options{
		Address:      uint8(address),
		InvertIO:     cfg.invert,
		WriteRetries: cfg.retries,
		RetryDelay:   cfg.delay,
		AutoLow:      cfg.autoLow,
		Logger:       log,
	})
	if err != nil {
		s.finish()
		return err
	}

	err = command(d, s, out, fs.Args())
	if ferr := s.finish(); err == nil {
		err = ferr
	}
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
