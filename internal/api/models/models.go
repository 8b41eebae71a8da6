package models

import (
	"github.com/smazurov/ispctl/internal/report"
	"github.com/smazurov/ispctl/internal/topology"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2026-10-18 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Pipeline models
type PipelineResponse struct {
	Body topology.Pipeline
}

// Sensor models
type SensorData struct {
	Gain     int `json:"gain" example:"0" doc:"Analogue gain in 0.3 dB units"`
	Exposure int `json:"exposure" example:"1650" doc:"Exposure in sensor lines"`
}

type SensorResponse struct {
	Body SensorData
}

// Statistics models
type StatsRequest struct {
	Profile string `query:"profile" default:"full" example:"average-post" doc:"Statistics profile: full, average-pre, bins-pre, average-post or 0-3"`
}

type StatsData struct {
	Profile  string `json:"profile" example:"full" doc:"Profile the statistics were captured with"`
	Sequence uint32 `json:"sequence" example:"42" doc:"Driver buffer sequence number"`
	report.Report
}

type StatsResponse struct {
	Body StatsData
}

// Preset models
type PresetRequestData struct {
	Profile string `json:"profile" minLength:"1" example:"dynamic" doc:"Preset name or numeric selector"`
	Persist bool   `json:"persist,omitempty" example:"false" doc:"Also store the preset in the tuning file"`
}

type PresetRequest struct {
	Body PresetRequestData
}

type PresetData struct {
	Block     string `json:"block" example:"contrast" doc:"Preset family that was applied"`
	Profile   string `json:"profile" example:"dynamic" doc:"Canonical preset name"`
	Persisted bool   `json:"persisted" example:"false" doc:"Whether the tuning file was updated"`
}

type PresetResponse struct {
	Body PresetData
}

// Auto exposure models
type AECRequestData struct {
	Target      *int `json:"target,omitempty" minimum:"0" maximum:"255" example:"56" doc:"Luminance target, the configured value when omitted"`
	Tolerance   *int `json:"tolerance,omitempty" minimum:"0" maximum:"255" example:"15" doc:"Accepted distance from the target"`
	MaxAttempts *int `json:"max_attempts,omitempty" minimum:"1" maximum:"1000" example:"20" doc:"Knob updates before giving up"`
}

type AECRequest struct {
	Body *AECRequestData `required:"false"`
}

type AECData struct {
	Outcome    string `json:"outcome" enum:"converged,limit_reached,max_attempts" example:"converged" doc:"Why the loop stopped"`
	Iterations int    `json:"iterations" example:"4" doc:"Statistics samples taken"`
	Attempts   int    `json:"attempts" example:"3" doc:"Knob updates pushed to the sensor"`
	Gain       int    `json:"gain" example:"0" doc:"Final analogue gain in 0.3 dB units"`
	Exposure   int    `json:"exposure" example:"1650" doc:"Final exposure in sensor lines"`
	Luminance  int    `json:"luminance" example:"52" doc:"Last measured average luminance"`
}

type AECResponse struct {
	Body AECData
}
