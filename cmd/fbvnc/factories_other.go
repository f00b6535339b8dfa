//go:build !linux

package main

import (
	"errors"

	"fbvnc/internal/input"
	"fbvnc/internal/server"
	"fbvnc/internal/types"
)

var errUnsupported = errors.New("fbdev and evdev require linux")

func newSurface(path string) (types.Surface, error) {
	return nil, errUnsupported
}

func newKeyboard(path string) (server.KeyInjector, error) {
	return nil, errUnsupported
}

func pointerFactory(mode input.PointerMode) server.PointerFactory {
	return func(path string, width, height int) (server.PointerInjector, error) {
		return nil, errUnsupported
	}
}
