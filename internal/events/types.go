package events

// Event type constants for kelindar/event.
const (
	TypeParamsApplied uint32 = iota + 1
	TypeStatsCaptured
	TypeExposureStep
	TypeAutoExposureDone
	TypeTransferError
	TypeTuningReloaded
	TypeMetricsSnapshot
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ParamsAppliedEvent is published after a parameter block reached the ISP.
type ParamsAppliedEvent struct {
	Blocks    string `json:"blocks" example:"BLC|EX|CC" doc:"ISP blocks updated by the parameter block"`
	Source    string `json:"source" example:"illuminant" doc:"What produced the parameters: contrast, illuminant, params or tuning"`
	Preset    string `json:"preset,omitempty" example:"d50" doc:"Preset name when the parameters came from a preset"`
	Timestamp string `json:"timestamp" example:"2026-10-18T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ParamsAppliedEvent.
func (e ParamsAppliedEvent) Type() uint32 { return TypeParamsApplied }

// StatsCapturedEvent is published for every statistics buffer read back.
type StatsCapturedEvent struct {
	Profile       string    `json:"profile" example:"average-post" doc:"Statistics profile the buffer was captured with"`
	Sequence      uint32    `json:"sequence" example:"12" doc:"Driver buffer sequence number"`
	PreAverage    [3]uint32 `json:"pre_average" doc:"Pre-demosaicing average R, G, B"`
	PostAverage   [3]uint32 `json:"post_average" doc:"Post-demosaicing average R, G, B"`
	PreLuminance  int       `json:"pre_luminance" example:"48" doc:"BT.601 luminance of the pre-demosaicing average"`
	PostLuminance int       `json:"post_luminance" example:"56" doc:"BT.601 luminance of the post-demosaicing average"`
	BadPixelCount uint32    `json:"bad_pixel_count" example:"3" doc:"Bad pixels detected in the frame"`
	Timestamp     string    `json:"timestamp" example:"2026-10-18T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatsCapturedEvent.
func (e StatsCapturedEvent) Type() uint32 { return TypeStatsCaptured }

// ExposureStepEvent describes one auto exposure iteration.
type ExposureStepEvent struct {
	Iteration int     `json:"iteration" example:"3" doc:"Statistics samples taken so far"`
	Attempt   int     `json:"attempt" example:"2" doc:"Knob updates pushed so far"`
	Luminance int     `json:"luminance" example:"30" doc:"Measured average luminance"`
	DeltaDb   float64 `json:"delta_db" example:"2.6" doc:"Gain correction computed from the luminance error"`
	Knob      string  `json:"knob" example:"exposure" doc:"Sensor control moved in this iteration"`
	Gain      int     `json:"gain" example:"0" doc:"Analogue gain in 0.3 dB units after the update"`
	Exposure  int     `json:"exposure" example:"1250" doc:"Exposure after the update"`
	Converged bool    `json:"converged" example:"false" doc:"Whether the luminance was within tolerance"`
	Timestamp string  `json:"timestamp" example:"2026-10-18T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ExposureStepEvent.
func (e ExposureStepEvent) Type() uint32 { return TypeExposureStep }

// AutoExposureDoneEvent is published when an auto exposure run stops.
type AutoExposureDoneEvent struct {
	Outcome    string `json:"outcome" example:"converged" doc:"converged, limit_reached or max_attempts"`
	Iterations int    `json:"iterations" example:"4" doc:"Statistics samples taken"`
	Attempts   int    `json:"attempts" example:"3" doc:"Knob updates pushed"`
	Gain       int    `json:"gain" example:"0" doc:"Final analogue gain in 0.3 dB units"`
	Exposure   int    `json:"exposure" example:"1650" doc:"Final exposure"`
	Luminance  int    `json:"luminance" example:"52" doc:"Last measured luminance"`
	Error      string `json:"error,omitempty" doc:"Error that aborted the run"`
	Timestamp  string `json:"timestamp" example:"2026-10-18T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AutoExposureDoneEvent.
func (e AutoExposureDoneEvent) Type() uint32 { return TypeAutoExposureDone }

// TransferErrorEvent is published when a meta buffer transfer fails.
type TransferErrorEvent struct {
	Node      string `json:"node" example:"/dev/video2" doc:"Meta device node"`
	Direction string `json:"direction" example:"capture" doc:"output for parameters, capture for statistics"`
	Code      string `json:"code" example:"TIMEOUT" doc:"Error classification"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2026-10-18T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TransferErrorEvent.
func (e TransferErrorEvent) Type() uint32 { return TypeTransferError }

// TuningReloadedEvent is published after the tuning file was re-applied.
type TuningReloadedEvent struct {
	Contrast   string `json:"contrast,omitempty" example:"dynamic" doc:"Contrast preset applied"`
	Illuminant string `json:"illuminant,omitempty" example:"tl84" doc:"Illuminant preset applied"`
	Error      string `json:"error,omitempty" doc:"Error that prevented the reload"`
	Timestamp  string `json:"timestamp" example:"2026-10-18T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TuningReloadedEvent.
func (e TuningReloadedEvent) Type() uint32 { return TypeTuningReloaded }

// MetricsSnapshotEvent carries the latest ISP gauges for SSE clients.
type MetricsSnapshotEvent struct {
	PostLuminance float64 `json:"post_luminance" example:"56" doc:"Last post-demosaicing luminance"`
	PreLuminance  float64 `json:"pre_luminance" example:"48" doc:"Last pre-demosaicing luminance"`
	BadPixels     float64 `json:"bad_pixels" example:"3" doc:"Last bad pixel count"`
	Gain          float64 `json:"gain" example:"0" doc:"Last known analogue gain"`
	Exposure      float64 `json:"exposure" example:"1650" doc:"Last known exposure"`
	Captures      float64 `json:"captures" example:"120" doc:"Statistics buffers captured"`
	Timestamp     string  `json:"timestamp" example:"2026-10-18T10:30:00Z" doc:"Snapshot timestamp"`
}

// Type returns the event type identifier for MetricsSnapshotEvent.
func (e MetricsSnapshotEvent) Type() uint32 { return TypeMetricsSnapshot }
