// Package spi talks to /dev/spidevB.D devices. RegisterLink speaks the MCP23S17 register protocol
// on top of it.
package spi

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

type Device struct {
	mutex     sync.Mutex
	file      *os.File
	name      string
	Frequency uint32
}

func OpenDevice(busID int, deviceID int) (*Device, error) {
	d := &Device{
		Frequency: 1000000,
		name:      fmt.Sprintf("/dev/spidev%d.%d", busID, deviceID),
	}

	var err error
	d.file, err = os.OpenFile(d.name, unix.O_RDWR|unix.O_NOCTTY, 0600)
	if err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Device) Close() error {
	return d.file.Close()
}

func (d *Device) String() string {
	return d.name
}

func getIoctlId(numTransfers int) uintptr {
	const base uint32 = 0x40006B00

	return uintptr(base + uint32(numTransfers*0x200000))
}

// Transfer clocks out writeBuf while reading into readBuf. When both are given they must have the
// same length.
func (d *Device) Transfer(writeBuf []byte, readBuf []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	type iocTransferRaw struct {
		TxBuf       uint64
		RxBuf       uint64
		Len         uint32
		Frequency   uint32
		DelayUs     uint16
		BitsPerWord uint8
		CsChange    uint8
		Pad         uint32
	}

	tr := iocTransferRaw{
		Frequency:   d.Frequency,
		DelayUs:     20,
		BitsPerWord: 8,
	}

	if len(writeBuf) > 0 {
		tr.TxBuf = uint64(uintptr(unsafe.Pointer(&writeBuf[0])))
		tr.Len = uint32(len(writeBuf))
	}
	if len(readBuf) > 0 {
		tr.RxBuf = uint64(uintptr(unsafe.Pointer(&readBuf[0])))
		tr.Len = uint32(len(readBuf))
	}

	if tr.TxBuf == 0 && tr.RxBuf == 0 {
		return nil
	}
	if tr.TxBuf != 0 && tr.RxBuf != 0 {
		if len(readBuf) != len(writeBuf) {
			return errors.New("Buffer length does not match")
		}
	}

	_, _, errNo := unix.Syscall(unix.SYS_IOCTL, d.file.Fd(), getIoctlId(1), uintptr(unsafe.Pointer(&tr)))

	runtime.KeepAlive(writeBuf)
	runtime.KeepAlive(readBuf)

	if errNo != 0 {
		return fmt.Errorf("SPI transfer failed: %w", errNo)
	}

	return nil
}
