//go:build !cgo

package rfb

import "fmt"

func init() {
	defaultServerFactory = func(width, height, bytesPerPixel int) (ServerPort, error) {
		return nil, fmt.Errorf("%w: built without cgo", ErrCreateServer)
	}
}
