//go:build linux

package main

import (
	"fbvnc/internal/capture"
	"fbvnc/internal/input"
	"fbvnc/internal/server"
	"fbvnc/internal/types"
)

func newSurface(path string) (types.Surface, error) {
	fb, err := capture.OpenFramebuffer(path)
	if err != nil {
		return nil, err
	}
	return fb, nil
}

func newKeyboard(path string) (server.KeyInjector, error) {
	dev, err := input.OpenDevice(path)
	if err != nil {
		return nil, err
	}
	return input.NewKeyboard(dev), nil
}

func pointerFactory(mode input.PointerMode) server.PointerFactory {
	return func(path string, width, height int) (server.PointerInjector, error) {
		dev, err := input.OpenDevice(path)
		if err != nil {
			return nil, err
		}
		cal, err := dev.AxisCalibration()
		if err != nil {
			dev.Close()
			return nil, err
		}
		return input.NewPointer(dev, mode, cal, width, height), nil
	}
}
