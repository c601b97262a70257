package touch

import (
	"fmt"
	"log/slog"

	evdev "github.com/holoplot/go-evdev"
)

// DeviceInfo describes an input device found on the system
type DeviceInfo struct {
	Path       string
	Name       string
	MultiTouch bool
}

// evdevDevice adapts an evdev input device to the Device interface
type evdevDevice struct {
	dev     *evdev.InputDevice
	ranges  Ranges
	grabbed bool
}

// OpenEvdev opens a Linux event device node as a touch surface
func OpenEvdev(path string, grab bool) (Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	infos, err := dev.AbsInfos()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to read axis ranges of %s: %w", path, err)
	}

	x, okX := infos[evdev.ABS_MT_POSITION_X]
	y, okY := infos[evdev.ABS_MT_POSITION_Y]
	if !okX || !okY {
		dev.Close()
		return nil, fmt.Errorf("%s is not a multi-touch device", path)
	}

	ranges := Ranges{
		X: AxisRange{Min: x.Minimum, Max: x.Maximum},
		Y: AxisRange{Min: y.Minimum, Max: y.Maximum},
	}
	if p, ok := infos[evdev.ABS_MT_PRESSURE]; ok {
		ranges.Pressure = AxisRange{Min: p.Minimum, Max: p.Maximum}
	}

	d := &evdevDevice{dev: dev, ranges: ranges}
	if grab {
		// EBUSY here means another process holds the device
		if err := dev.Grab(); err != nil {
			dev.Close()
			return nil, fmt.Errorf("failed to grab %s: %w", path, err)
		}
		d.grabbed = true
	}

	name, _ := dev.Name()
	slog.Debug("Opened touch device", "path", path, "name", name, "x", ranges.X, "y", ranges.Y, "pressure", ranges.Pressure)
	return d, nil
}

func (d *evdevDevice) Ranges() Ranges {
	return d.ranges
}

func (d *evdevDevice) ReadOne() (*evdev.InputEvent, error) {
	return d.dev.ReadOne()
}

func (d *evdevDevice) Close() error {
	if d.grabbed {
		if err := d.dev.Ungrab(); err != nil {
			slog.Debug("Failed to ungrab touch device", "error", err)
		}
	}
	return d.dev.Close()
}

// ListDevices enumerates input devices and flags the multi-touch capable ones
func ListDevices() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		info := DeviceInfo{Path: p.Path, Name: p.Name}
		if dev, err := evdev.Open(p.Path); err == nil {
			info.MultiTouch = isMultiTouch(dev)
			dev.Close()
		}
		devices = append(devices, info)
	}
	return devices, nil
}

// FindTouchpad returns the node of the first multi-touch device
func FindTouchpad() (string, error) {
	devices, err := ListDevices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.MultiTouch {
			return d.Path, nil
		}
	}
	return "", fmt.Errorf("no multi-touch device found (check permissions on /dev/input)")
}

func isMultiTouch(dev *evdev.InputDevice) bool {
	hasX, hasY := false, false
	for _, code := range dev.CapableEvents(evdev.EV_ABS) {
		switch code {
		case evdev.ABS_MT_POSITION_X:
			hasX = true
		case evdev.ABS_MT_POSITION_Y:
			hasY = true
		}
	}
	return hasX && hasY
}
