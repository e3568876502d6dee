// Package hal probes and initializes the device drivers that the kernel
// is built with.
package hal

import (
	"bytes"
	"sort"

	"github.com/nickorlow/rosco/device"
	"github.com/nickorlow/rosco/device/video/console"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeConsole console.Device

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer
)

// ActiveConsole returns the first console device that was initialized.
func ActiveConsole() console.Device {
	return devices.activeConsole
}

// ActiveDrivers returns the drivers that initialized successfully in the
// order they were probed.
func ActiveDrivers() []device.Driver {
	return devices.activeDrivers
}

// DetectHardware probes for the devices in driverInfoList and initializes
// the appropriate drivers. Entries are probed by ascending detection order;
// entries with the same order are probed in list order. Devices found by a
// previous call are forgotten.
func DetectHardware(driverInfoList device.DriverInfoList) {
	devices = managedDevices{}

	drivers := append(device.DriverInfoList(nil), driverInfoList...)
	sort.Stable(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.Output}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		onDriverInit(drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized. The first console becomes the active one.
func onDriverInit(drv device.Driver) {
	if cons, ok := drv.(console.Device); ok && devices.activeConsole == nil {
		devices.activeConsole = cons
	}
}
