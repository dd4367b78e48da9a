// Package i2c talks to devices on a Linux /dev/i2c-N bus using combined I2C_RDWR transfers.
package i2c

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/BertoldVdb/go-mcp23017/smbus"
	"golang.org/x/sys/unix"
)

// Bus is an open I2C adapter. It implements smbus.Link, smbus.ByteReader and smbus.AddressLocker.
type Bus struct {
	smbus.Locks

	mutex sync.Mutex
	file  *os.File
	busID int
}

const (
	i2cFlagsRead uint16  = 1
	i2cRdWr      uintptr = 0x00000707
)

func OpenBus(busID int) (*Bus, error) {
	b := &Bus{busID: busID}

	var err error
	b.file, err = os.OpenFile(fmt.Sprintf("/dev/i2c-%d", busID), unix.O_RDWR|unix.O_NOCTTY, 0600)
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Bus) Close() error {
	return b.file.Close()
}

func (b *Bus) String() string {
	return fmt.Sprintf("/dev/i2c-%d", b.busID)
}

// Transfer writes writeBuf and then reads readBuf in one transaction with a repeated start.
// Empty buffers are skipped.
func (b *Bus) Transfer(address uint16, writeBuf []byte, readBuf []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	type msg struct {
		Address uint16
		Flags   uint16
		Len     uint16
		Buf     uintptr
	}

	var transfer []msg
	if len(writeBuf) > 0 {
		transfer = append(transfer, msg{
			Address: address,
			Len:     uint16(len(writeBuf)),
			Buf:     uintptr(unsafe.Pointer(&writeBuf[0])),
		})
	}
	if len(readBuf) > 0 {
		transfer = append(transfer, msg{
			Address: address,
			Flags:   i2cFlagsRead,
			Len:     uint16(len(readBuf)),
			Buf:     uintptr(unsafe.Pointer(&readBuf[0])),
		})
	}

	if len(transfer) == 0 {
		// A succesful, albeit useless, transfer
		return nil
	}

	type rdWrRaw struct {
		Messages    uintptr
		NumMessages uint32
	}

	param := rdWrRaw{
		Messages:    uintptr(unsafe.Pointer(&transfer[0])),
		NumMessages: uint32(len(transfer)),
	}

	_, _, errNo := unix.Syscall(unix.SYS_IOCTL, b.file.Fd(), i2cRdWr, uintptr(unsafe.Pointer(&param)))

	runtime.KeepAlive(transfer)
	runtime.KeepAlive(writeBuf)
	runtime.KeepAlive(readBuf)

	if errNo != 0 {
		return errNo
	}

	return nil
}

func (b *Bus) WriteByteData(address uint8, register uint8, value uint8) error {
	err := b.GetDevice(uint16(address)).WriteReg8(register, value)
	if err != nil {
		return &smbus.TransportError{Op: "write", Address: address, Register: register, Err: err}
	}
	return nil
}

func (b *Bus) ReadByteData(address uint8, register uint8) (uint8, error) {
	v, err := b.GetDevice(uint16(address)).ReadReg8(register)
	if err != nil {
		return 0, &smbus.TransportError{Op: "read", Address: address, Register: register, Err: err}
	}
	return v, nil
}

// ReadByte reads one byte without sending a register first. For register based chips this is
// the register the internal address pointer points at.
func (b *Bus) ReadByte(address uint8) (uint8, error) {
	read := make([]byte, 1)
	if err := b.Transfer(uint16(address), nil, read); err != nil {
		return 0, &smbus.TransportError{Op: "read byte", Address: address, Err: err}
	}
	return read[0], nil
}
