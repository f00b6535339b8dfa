//go:build cgo

package rfb

func init() {
	defaultServerFactory = func(width, height, bytesPerPixel int) (ServerPort, error) {
		s := NewServer(width, height, bytesPerPixel)
		if s == nil {
			return nil, ErrCreateServer
		}
		return s, nil
	}
}
