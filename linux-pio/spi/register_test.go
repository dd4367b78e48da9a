package spi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/BertoldVdb/go-mcp23017/smbus"
)

var _ smbus.Link = (*RegisterLink)(nil)
var _ smbus.AddressLocker = (*RegisterLink)(nil)
var _ Transferer = (*Device)(nil)

type recorder struct {
	tx    [][]byte
	reply byte
	err   error
}

func (r *recorder) Transfer(writeBuf []byte, readBuf []byte) error {
	r.tx = append(r.tx, append([]byte(nil), writeBuf...))
	if r.err != nil {
		return r.err
	}
	if len(readBuf) > 0 {
		readBuf[len(readBuf)-1] = r.reply
	}
	return nil
}

func TestOpcode(t *testing.T) {
	if opcode(0x20, false) != 0x40 || opcode(0x20, true) != 0x41 {
		t.Error("Base address opcode wrong")
	}
	if opcode(0x27, false) != 0x4E || opcode(0x27, true) != 0x4F {
		t.Error("Hardware address not shifted", opcode(0x27, false))
	}
}

func TestRegisterLinkFrames(t *testing.T) {
	r := &recorder{reply: 0xA5}
	l := NewRegisterLink(r)

	if err := l.WriteByteData(0x21, 0x12, 0x0F); err != nil {
		t.Fatal(err)
	}
	v, err := l.ReadByteData(0x21, 0x13)
	if err != nil || v != 0xA5 {
		t.Fatal("Read failed", v, err)
	}

	if !bytes.Equal(r.tx[0], []byte{0x42, 0x12, 0x0F}) {
		t.Error("Wrong write frame", r.tx[0])
	}
	if !bytes.Equal(r.tx[1], []byte{0x43, 0x13, 0x00}) {
		t.Error("Wrong read frame", r.tx[1])
	}
}

func TestRegisterLinkError(t *testing.T) {
	l := NewRegisterLink(&recorder{err: errors.New("no device")})

	_, err := l.ReadByteData(0x20, 0x00)
	if !errors.Is(err, smbus.ErrorTransport) {
		t.Error("Transfer error not wrapped", err)
	}
}
