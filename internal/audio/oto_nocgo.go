//go:build nocgo
// +build nocgo

package audio

import "github.com/charmbracelet/log"

// OtoDevice is unavailable in builds without cgo.
type OtoDevice struct {
	MockDevice
}

// NewOtoDevice always fails with ErrUnavailable in nocgo builds.
func NewOtoDevice(cfg Config, logger *log.Logger) (*OtoDevice, error) {
	return nil, ErrUnavailable
}
