//go:build linux

package capture

import (
	"fmt"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"fbvnc/internal/types"
)

const fbioGetVScreenInfo = 0x4600

// Framebuffer is a read-only mapping of a Linux fbdev node.
type Framebuffer struct {
	path   string
	fd     int
	mem    []byte
	words  []uint32
	format types.PixelFormat
}

// OpenFramebuffer opens path, queries its variable screen info and maps the
// visible frame read-only. Any failure here leaves nothing open.
func OpenFramebuffer(path string) (*Framebuffer, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer device %q: %w", path, err)
	}

	var info varScreenInfo
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), fbioGetVScreenInfo, uintptr(unsafe.Pointer(&info))); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("FBIOGET_VSCREENINFO on %q: %w", path, errno)
	}

	log.Debugf("capture: xres=%d yres=%d xres_virtual=%d yres_virtual=%d xoffset=%d yoffset=%d bpp=%d",
		info.XRes, info.YRes, info.XResVirtual, info.YResVirtual, info.XOffset, info.YOffset, info.BitsPerPixel)

	format := info.format()
	if err := format.Validate(); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("framebuffer %q: %w", path, err)
	}

	size := format.Width * format.Height * format.BytesPerPixel()
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("map framebuffer %q: %w", path, err)
	}

	log.Infof("capture: fbdev %s (%s)", path, format)
	return &Framebuffer{
		path:   path,
		fd:     fd,
		mem:    mem,
		words:  unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4),
		format: format,
	}, nil
}

func (fb *Framebuffer) Format() types.PixelFormat { return fb.format }

// Words is the live mapping. It changes underneath the caller.
func (fb *Framebuffer) Words() []uint32 { return fb.words }

func (fb *Framebuffer) Close() error {
	if fb.mem == nil {
		return nil
	}
	fb.words = nil
	err := unix.Munmap(fb.mem)
	fb.mem = nil
	if cerr := unix.Close(fb.fd); err == nil {
		err = cerr
	}
	return err
}
