//go:build linux

// internal/regio/i2cdev/bus_linux.go
package i2cdev

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const ioctlRdwr = 0x0707 // I2C_RDWR

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// i2cRdwrData mirrors struct i2c_rdwr_ioctl_data.
type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

type devBus struct {
	fd int
}

func openBus(path string) (transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &devBus{fd: fd}, nil
}

func (b *devBus) transfer(addr uint16, msgs ...message) error {
	raw := make([]i2cMsg, len(msgs))
	for i, m := range msgs {
		raw[i] = i2cMsg{
			addr:  addr,
			flags: m.flags,
			len:   uint16(len(m.buf)),
			buf:   uintptr(unsafe.Pointer(&m.buf[0])),
		}
	}
	data := i2cRdwrData{
		msgs:  uintptr(unsafe.Pointer(&raw[0])),
		nmsgs: uint32(len(raw)),
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), ioctlRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(raw)
	runtime.KeepAlive(msgs)
	if errno != 0 {
		return errno
	}
	return nil
}

func (b *devBus) close() error {
	return unix.Close(b.fd)
}
