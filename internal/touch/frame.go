package touch

import (
	"sort"

	evdev "github.com/holoplot/go-evdev"
)

// AxisRange is the raw value range the kernel reports for one absolute axis
type AxisRange struct {
	Min int32
	Max int32
}

// normalize maps a raw value into [0,1]
func (r AxisRange) normalize(v int32) float64 {
	if r.Max <= r.Min {
		return 0
	}
	n := float64(v-r.Min) / float64(r.Max-r.Min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Ranges describes the absolute axes of a multi-touch surface
type Ranges struct {
	X        AxisRange
	Y        AxisRange
	Pressure AxisRange // zero range means the device reports no pressure
}

// Frame is the decoded state of the surface at one SYN_REPORT
type Frame struct {
	Touches []Touch // pressing touches, plus touches that lifted in this frame (Active=false)
	Hovers  []Touch
	Pressed bool // button went down during this frame
	ScrollX float64
	ScrollY float64
}

type slot struct {
	tracking int32
	id       ID
	x, y     int32
	pressure int32
	distance int32
	lifted   bool
}

// decoder turns a stream of Linux multi-touch protocol B events into frames
type decoder struct {
	ranges         Ranges
	hoverThreshold float64

	slots   map[int32]*slot
	current int32
	nextID  ID

	button  bool
	pressed bool
	wheelX  int32
	wheelY  int32
}

func newDecoder(ranges Ranges, hoverThreshold float64) *decoder {
	return &decoder{
		ranges:         ranges,
		hoverThreshold: hoverThreshold,
		slots:          make(map[int32]*slot),
	}
}

// feed consumes one event and returns a frame when the event closes one
func (d *decoder) feed(ev *evdev.InputEvent) (Frame, bool) {
	switch ev.Type {
	case evdev.EV_ABS:
		d.feedAbs(ev)
	case evdev.EV_KEY:
		if ev.Code == evdev.BTN_LEFT {
			down := ev.Value != 0
			if down && !d.button {
				d.pressed = true
			}
			d.button = down
		}
	case evdev.EV_REL:
		switch ev.Code {
		case evdev.REL_WHEEL:
			d.wheelY += ev.Value
		case evdev.REL_HWHEEL:
			d.wheelX += ev.Value
		}
	case evdev.EV_SYN:
		if ev.Code == evdev.SYN_REPORT {
			return d.flush(), true
		}
	}
	return Frame{}, false
}

func (d *decoder) feedAbs(ev *evdev.InputEvent) {
	if ev.Code == evdev.ABS_MT_SLOT {
		d.current = ev.Value
		return
	}

	s := d.slots[d.current]

	if ev.Code == evdev.ABS_MT_TRACKING_ID {
		if ev.Value < 0 {
			if s != nil {
				s.lifted = true
			}
			return
		}
		// A new contact always gets a fresh ID, even if the kernel recycles tracking ids
		d.nextID++
		ns := &slot{tracking: ev.Value, id: d.nextID}
		if s != nil && !s.lifted {
			ns.x, ns.y, ns.pressure = s.x, s.y, s.pressure
		}
		d.slots[d.current] = ns
		return
	}

	if s == nil {
		return
	}
	switch ev.Code {
	case evdev.ABS_MT_POSITION_X:
		s.x = ev.Value
	case evdev.ABS_MT_POSITION_Y:
		s.y = ev.Value
	case evdev.ABS_MT_PRESSURE:
		s.pressure = ev.Value
	case evdev.ABS_MT_DISTANCE:
		s.distance = ev.Value
	}
}

func (d *decoder) flush() Frame {
	var f Frame

	keys := make([]int32, 0, len(d.slots))
	for k := range d.slots {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		s := d.slots[k]
		t := Touch{
			ID: s.id,
			Position: Point{
				X: d.ranges.X.normalize(s.x),
				Y: d.ranges.Y.normalize(s.y),
			},
			Pressure: 1,
		}
		if d.ranges.Pressure.Max > d.ranges.Pressure.Min {
			t.Pressure = d.ranges.Pressure.normalize(s.pressure)
		}

		if s.lifted {
			f.Touches = append(f.Touches, t)
			delete(d.slots, k)
			continue
		}

		if s.distance > 0 || t.Pressure < d.hoverThreshold {
			f.Hovers = append(f.Hovers, t)
			continue
		}

		t.Active = true
		f.Touches = append(f.Touches, t)
	}

	f.Pressed = d.pressed
	f.ScrollX = float64(d.wheelX)
	f.ScrollY = float64(d.wheelY)
	d.pressed = false
	d.wheelX, d.wheelY = 0, 0

	return f
}
