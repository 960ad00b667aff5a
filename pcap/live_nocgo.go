//go:build !cgo

package pcap

import (
	"github.com/frozenpine/stack4go/core"
	"github.com/frozenpine/stack4go/errors"
)

func openLive(source, _ string) (core.Driver, error) {
	return nil, errors.Wrapf(ErrInvalidSource, "pcap://%s: built without cgo", source)
}
