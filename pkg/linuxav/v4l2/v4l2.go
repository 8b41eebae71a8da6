//go:build linux

// Package v4l2 provides pure Go bindings to the subset of the Video4Linux2
// (V4L2) API needed to drive meta-data video nodes and sub-devices.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Meta Buffers
//
// Meta video nodes exchange fixed-layout records (parameters, statistics)
// through memory-mapped buffers:
//
//	dev, _ := v4l2.Open("/dev/video3")
//	defer dev.Close()
//	n, _ := dev.RequestBuffers(v4l2.BufTypeMetaCapture, 1)
//	buf, _ := dev.QueryBuffer(v4l2.BufTypeMetaCapture, 0)
//	mem, _ := dev.Map(buf.Offset, buf.Length)
//	_ = dev.QueueBuffer(v4l2.BufTypeMetaCapture, 0, 0)
//	_ = dev.StreamOn(v4l2.BufTypeMetaCapture)
//	ready, _ := dev.Wait(2*time.Second, false)
//
// # Controls
//
// Scalar controls are addressed by id, extended controls by class and id:
//
//	exposure, _ := dev.Control(v4l2.CIDExposure)
//	_ = dev.SetExtControl(v4l2.CtrlClassImageSource, v4l2.CIDAnalogueGain, 30)
//
// # Sub-devices
//
// Active pad formats and selection rectangles are read with SubdevFormat and
// SubdevSelection.
package v4l2
