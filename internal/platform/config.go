package platform

// Config holds the device and logging settings passed from CLI flags.
type Config struct {
	FBDevice  string
	KbdDevice string // discovered when empty
	PtrDevice string // discovered when empty
	Verbosity int    // 0 default, 1 for -v, 2 for -vv
}
