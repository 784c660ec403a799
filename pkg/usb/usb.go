// Package usb discovers USB mass-storage devices and maps them onto their
// block device nodes. Discovery is implemented on Linux through sysfs;
// other hosts report no devices.
package usb

import "time"

// DefaultTimeout bounds a descriptor string read.
const DefaultTimeout = time.Second
