// Package isp defines the DCMIPP ISP control blocks exchanged with the driver
// and the pure encoders that build them.
//
// A Params record travels to the ISP through the parameters meta node; a
// Stats record comes back through the statistics meta node. Both use the
// driver's fixed C layout in native byte order.
//
// Fixed-point encoders:
//
//	shift, mant, _ := isp.ExposureGainToFixedPoint(2.2) // 1, 140
//	cell := isp.ColorMatrixCellToFixedPoint(-1.0)       // 0x700
//
// Presets compose complete Params records:
//
//	params, _ := isp.BuildIlluminantProfile(isp.IlluminantD50)
//	payload, _ := params.MarshalBinary()
package isp
