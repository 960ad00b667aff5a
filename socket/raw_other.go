//go:build !linux

package socket

import (
	"github.com/pkg/errors"

	"github.com/frozenpine/stack4go"
)

type RawDriver struct{}

func OpenRaw(bind string) (*RawDriver, error) {
	return nil, errors.Wrap(ErrUnsupported, bind)
}

func (drv *RawDriver) HardwareAddr() stack4go.MACAddr {
	return stack4go.ZeroMAC
}

func (drv *RawDriver) Recv([]byte) (int, error) {
	return 0, ErrUnsupported
}

func (drv *RawDriver) Send([]byte) error {
	return ErrUnsupported
}

func (drv *RawDriver) Close() error {
	return nil
}
