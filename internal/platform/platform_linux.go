//go:build linux

package platform

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"fbvnc/internal/input"
)

// Init fills in input devices that were not given on the command line.
func Init(cfg *Config) error {
	if cfg.KbdDevice == "" {
		path, err := input.Discover(input.KeyboardPatterns)
		if err != nil {
			return fmt.Errorf("auto-detect keyboard device (use -k): %w", err)
		}
		cfg.KbdDevice = path
	}
	if cfg.PtrDevice == "" {
		path, err := input.Discover(input.PointerPatterns)
		if err != nil {
			return fmt.Errorf("auto-detect pointer device (use -m): %w", err)
		}
		cfg.PtrDevice = path
	}
	log.Infof("platform: framebuffer %s, keyboard %s, pointer %s", cfg.FBDevice, cfg.KbdDevice, cfg.PtrDevice)
	return nil
}
