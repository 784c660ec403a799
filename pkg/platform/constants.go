package platform

const (
	// VolumeLabel is the label given to freshly formatted devices.
	VolumeLabel = "WEBBOOT"
	// LinuxBlockSize is the dd block size used on Linux.
	LinuxBlockSize = "4M"
	// DarwinBlockSize is the dd block size used on macOS (BSD dd spelling).
	DarwinBlockSize = "4m"
	// DefaultScheme is used when a job names no partition scheme.
	DefaultScheme = "MBR"
)
