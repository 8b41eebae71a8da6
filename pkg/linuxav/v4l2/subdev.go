//go:build linux

package v4l2

import "unsafe"

// SubdevFormat reads the active media-bus format of a sub-device pad.
func (d *Device) SubdevFormat(pad uint32) (MbusFormat, error) {
	raw := v4l2SubdevFormat{which: SubdevFormatActive, pad: pad}
	if err := ioctl(d.fd, vidiocSubdevGFmt, unsafe.Pointer(&raw)); err != nil {
		return MbusFormat{}, err
	}
	return MbusFormat{
		Width:  raw.format.width,
		Height: raw.format.height,
		Code:   raw.format.code,
		Field:  raw.format.field,
	}, nil
}

// SubdevSelection reads the active selection rectangle of a sub-device pad
// for the given target (e.g. SelTgtCompose).
func (d *Device) SubdevSelection(pad, target uint32) (Rect, error) {
	raw := v4l2SubdevSelection{which: SubdevFormatActive, pad: pad, target: target}
	if err := ioctl(d.fd, vidiocSubdevGSelection, unsafe.Pointer(&raw)); err != nil {
		return Rect{}, err
	}
	return Rect{
		Left:   raw.r.left,
		Top:    raw.r.top,
		Width:  raw.r.width,
		Height: raw.r.height,
	}, nil
}
