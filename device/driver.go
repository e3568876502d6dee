// Package device defines the contract between the kernel and its device
// drivers.
package device

import (
	"io"

	"github.com/nickorlow/rosco/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprintf.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it or nil if the hardware is
// not present.
type ProbeFn func() Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

// The order in which device drivers are probed.
const (
	// DetectOrderEarly drivers are probed first. Display drivers use it
	// so that other drivers can log to the screen.
	DetectOrderEarly DetectOrder = -128

	// DetectOrderInterrupts is used by the interrupt controller.
	DetectOrderInterrupts DetectOrder = -64

	// DetectOrderNormal is used by drivers that raise interrupts.
	DetectOrderNormal DetectOrder = 0

	// DetectOrderLast drivers are probed last.
	DetectOrderLast DetectOrder = 127
)

// DriverInfo is used by the hal package to probe and initialize a device
// driver.
type DriverInfo struct {
	// Order specifies at which stage of the probe process the driver's
	// probe function will be invoked.
	Order DetectOrder

	// Probe returns a driver for the device or nil if the device is
	// not present.
	Probe ProbeFn
}

// DriverInfoList is a list of driver entries that implements
// sort.Interface.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }
