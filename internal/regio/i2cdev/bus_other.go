//go:build !linux

// internal/regio/i2cdev/bus_other.go
package i2cdev

import "errors"

func openBus(path string) (transport, error) {
	return nil, errors.New("i2c-dev is only available on linux")
}
