//go:build linux

package input

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	eventPathFmt    = "/dev/input/event%d"
	maxEventDevices = 20
)

// Name patterns tried in order of preference.
var (
	KeyboardPatterns = []string{
		"VNC",    // VNC keyboard driver
		"key",    // keypad
		"qwerty", // emulator
	}
	PointerPatterns = []string{
		"touch", // touchpad
		"qwerty",
		"Tablet",
	}
)

// Discover scans the first event nodes and returns the path of the device
// whose name matches the earliest pattern.
func Discover(patterns []string) (string, error) {
	names := make(map[string]string)
	for i := 0; i < maxEventDevices; i++ {
		path := fmt.Sprintf(eventPathFmt, i)
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		name, err := deviceName(fd)
		unix.Close(fd)
		if err != nil {
			continue
		}
		names[path] = name
	}

	path, pattern, ok := matchDevice(names, patterns, maxEventDevices)
	if !ok {
		return "", fmt.Errorf("%w (patterns %q)", ErrNoDevice, patterns)
	}
	log.Debugf("input: found %s by keyword %q", path, pattern)
	return path, nil
}

// matchDevice picks the lowest-numbered node matching the best pattern.
// names maps node path to device name.
func matchDevice(names map[string]string, patterns []string, max int) (path, pattern string, ok bool) {
	best := -1
	for i := 0; i < max; i++ {
		p := fmt.Sprintf(eventPathFmt, i)
		name, found := names[p]
		if !found {
			continue
		}
		for j, pat := range patterns {
			if !strings.Contains(name, pat) {
				continue
			}
			if best < 0 || j < best {
				best = j
				path = p
			}
			break
		}
	}
	if best < 0 {
		return "", "", false
	}
	return path, patterns[best], true
}
