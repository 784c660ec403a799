package platform

// New returns the adapter for this host.
func New() Adapter {
	return NewWindowsAdapter(ExecRunner{})
}
