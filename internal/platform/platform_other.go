//go:build !linux

package platform

import (
	"errors"
	"runtime"
)

func Init(cfg *Config) error {
	return errors.New("fbdev and evdev are only available on linux, not " + runtime.GOOS)
}
