//go:build linux

package input

import (
	"bytes"
	"errors"
	"fmt"
	"time"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"fbvnc/internal/types"
)

var ErrNoDevice = errors.New("no matching input device")

// rawEvent mirrors struct input_event for the running architecture.
type rawEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocRead = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

func eviocgabs(abs int) uintptr {
	return ioc(iocRead, 'E', uint32(0x40+abs), uint32(unsafe.Sizeof(absInfo{})))
}

func eviocgname(size int) uintptr {
	return ioc(iocRead, 'E', 0x06, uint32(size))
}

// Device is an evdev node opened for event injection.
type Device struct {
	path string
	fd   int
	now  func() time.Time
}

// OpenDevice opens an event node read-write.
func OpenDevice(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open input device %q: %w", path, err)
	}
	return &Device{path: path, fd: fd, now: time.Now}, nil
}

func (d *Device) Path() string { return d.path }

// Name returns the device name reported by EVIOCGNAME.
func (d *Device) Name() (string, error) {
	return deviceName(d.fd)
}

// AxisCalibration reads the ABS_X and ABS_Y ranges.
func (d *Device) AxisCalibration() (types.AxisCalibration, error) {
	x, err := absRange(d.fd, ABS_X)
	if err != nil {
		return types.AxisCalibration{}, fmt.Errorf("EVIOCGABS(ABS_X) on %q: %w", d.path, err)
	}
	y, err := absRange(d.fd, ABS_Y)
	if err != nil {
		return types.AxisCalibration{}, fmt.Errorf("EVIOCGABS(ABS_Y) on %q: %w", d.path, err)
	}
	cal := types.AxisCalibration{XMin: x.Min, XMax: x.Max, YMin: y.Min, YMax: y.Max}
	log.Debugf("input: %s xmin=%d xmax=%d ymin=%d ymax=%d", d.path, cal.XMin, cal.XMax, cal.YMin, cal.YMax)
	return cal, nil
}

// WriteEvent stamps ev with the current time and writes one record.
func (d *Device) WriteEvent(ev types.DeviceEvent) error {
	buf := encodeEvent(ev, d.now())
	n, err := unix.Write(d.fd, buf)
	if err != nil {
		return fmt.Errorf("write %s: %w", d.path, err)
	}
	if n != len(buf) {
		return fmt.Errorf("write %s: short write %d/%d", d.path, n, len(buf))
	}
	return nil
}

func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func encodeEvent(ev types.DeviceEvent, t time.Time) []byte {
	raw := rawEvent{
		Time:  unix.NsecToTimeval(t.UnixNano()),
		Type:  ev.Type,
		Code:  ev.Code,
		Value: ev.Value,
	}
	out := make([]byte, unsafe.Sizeof(raw))
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&raw)), unsafe.Sizeof(raw)))
	return out
}

func absRange(fd, axis int) (absInfo, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), eviocgabs(axis), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return absInfo{}, errno
	}
	return info, nil
}

func deviceName(fd int) (string, error) {
	var name [256]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), eviocgname(len(name)), uintptr(unsafe.Pointer(&name[0])))
	if errno != 0 {
		return "", errno
	}
	if i := bytes.IndexByte(name[:], 0); i >= 0 {
		return string(name[:i]), nil
	}
	return string(name[:]), nil
}
