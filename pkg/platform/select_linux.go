package platform

import "os"

// New returns the adapter for this host.
func New() Adapter {
	return NewLinuxAdapter(ExecRunner{}, os.Geteuid() != 0)
}
