//go:build linux

package v4l2

import (
	"encoding/binary"
	"runtime"
	"unsafe"
)

// Control reads a scalar control with VIDIOC_G_CTRL.
func (d *Device) Control(id uint32) (int32, error) {
	ctrl := v4l2Control{id: id}
	if err := ioctl(d.fd, vidiocGCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return 0, err
	}
	return ctrl.value, nil
}

// SetControl writes a scalar control with VIDIOC_S_CTRL.
func (d *Device) SetControl(id uint32, value int32) error {
	ctrl := v4l2Control{id: id, value: value}
	return ioctl(d.fd, vidiocSCtrl, unsafe.Pointer(&ctrl))
}

// ExtControl reads a 32-bit integer control of the given class.
func (d *Device) ExtControl(class, id uint32) (int32, error) {
	ctrl := v4l2ExtControl{id: id}
	if err := d.extCtrls(vidiocGExtCtrls, class, &ctrl); err != nil {
		return 0, err
	}
	return int32(binary.NativeEndian.Uint32(ctrl.value[:4])), nil
}

// SetExtControl writes a 32-bit integer control of the given class.
func (d *Device) SetExtControl(class, id uint32, value int32) error {
	ctrl := v4l2ExtControl{id: id}
	binary.NativeEndian.PutUint32(ctrl.value[:4], uint32(value))
	return d.extCtrls(vidiocSExtCtrls, class, &ctrl)
}

func (d *Device) extCtrls(req uint, class uint32, ctrl *v4l2ExtControl) error {
	ctrls := v4l2ExtControls{
		ctrlClass: class,
		count:     1,
		controls:  unsafe.Pointer(ctrl),
	}
	err := ioctl(d.fd, req, unsafe.Pointer(&ctrls))
	runtime.KeepAlive(ctrl)
	return err
}
