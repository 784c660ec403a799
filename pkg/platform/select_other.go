//go:build !linux && !darwin && !windows

package platform

// New returns the adapter for this host.
func New() Adapter {
	return StubAdapter{}
}
