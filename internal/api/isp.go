package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/ispctl/internal/api/models"
	"github.com/smazurov/ispctl/internal/config"
	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/report"
)

// toHTTPError maps the ISP error taxonomy onto HTTP statuses.
func toHTTPError(err error) error {
	msg := err.Error()
	switch isp.CodeOf(err) {
	case isp.ErrNotFound:
		return huma.Error404NotFound(msg)
	case isp.ErrIncompatibleDevice:
		return huma.Error409Conflict(msg)
	case isp.ErrBusy, isp.ErrOutOfMemory:
		return huma.Error503ServiceUnavailable(msg)
	case isp.ErrTimeout:
		return huma.Error504GatewayTimeout(msg)
	case isp.ErrInvalidArgument:
		return huma.Error400BadRequest(msg)
	default:
		return huma.Error500InternalServerError(msg)
	}
}

func (s *Server) registerISPRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/api/pipeline",
		Summary:     "Pipeline",
		Description: "Device nodes of the bound pipeline and the ISP input format",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.PipelineResponse, error) {
		return &models.PipelineResponse{Body: s.isp.Pipeline()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-sensor",
		Method:      http.MethodGet,
		Path:        "/api/sensor",
		Summary:     "Sensor controls",
		Description: "Current analogue gain and exposure of the sensor",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.SensorResponse, error) {
		gain, exposure, err := s.isp.SensorState()
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.SensorResponse{Body: models.SensorData{Gain: gain, Exposure: exposure}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Capture statistics",
		Description: "Capture one statistics buffer and return averages, bins and the range histogram",
		Tags:        []string{"statistics"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 500, 503, 504},
	}, func(_ context.Context, input *models.StatsRequest) (*models.StatsResponse, error) {
		profile, err := isp.ParseStatProfile(input.Profile)
		if err != nil {
			return nil, toHTTPError(err)
		}
		sample, err := s.isp.Capture(profile)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.StatsResponse{
			Body: models.StatsData{
				Profile:  profile.String(),
				Sequence: sample.Sequence,
				Report:   report.Build(sample.Stats),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-contrast",
		Method:      http.MethodPost,
		Path:        "/api/contrast",
		Summary:     "Apply contrast preset",
		Description: "Send a contrast enhancement preset: none, half, double or dynamic",
		Tags:        []string{"tuning"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 500, 503, 504},
	}, func(_ context.Context, input *models.PresetRequest) (*models.PresetResponse, error) {
		profile, err := isp.ParseContrast(input.Body.Profile)
		if err != nil {
			return nil, toHTTPError(err)
		}
		if err := s.isp.ApplyContrast(profile); err != nil {
			return nil, toHTTPError(err)
		}
		persisted, err := s.persist(input.Body.Persist, func(t *config.Tuning) { t.Contrast = profile.String() })
		if err != nil {
			return nil, huma.Error500InternalServerError("preset applied but tuning file not updated", err)
		}
		return &models.PresetResponse{
			Body: models.PresetData{Block: "contrast", Profile: profile.String(), Persisted: persisted},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-illuminant",
		Method:      http.MethodPost,
		Path:        "/api/illuminant",
		Summary:     "Apply illuminant profile",
		Description: "Send the black level, white balance and color correction of a light source: d50 or tl84",
		Tags:        []string{"tuning"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 500, 503, 504},
	}, func(_ context.Context, input *models.PresetRequest) (*models.PresetResponse, error) {
		profile, err := isp.ParseIlluminant(input.Body.Profile)
		if err != nil {
			return nil, toHTTPError(err)
		}
		if err := s.isp.ApplyIlluminant(profile); err != nil {
			return nil, toHTTPError(err)
		}
		persisted, err := s.persist(input.Body.Persist, func(t *config.Tuning) { t.Illuminant = profile.String() })
		if err != nil {
			return nil, huma.Error500InternalServerError("preset applied but tuning file not updated", err)
		}
		return &models.PresetResponse{
			Body: models.PresetData{Block: "illuminant", Profile: profile.String(), Persisted: persisted},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "run-aec",
		Method:      http.MethodPost,
		Path:        "/api/aec",
		Summary:     "Run auto exposure",
		Description: "Run the auto exposure loop until the luminance converges or a limit is reached. Progress is streamed on /api/events.",
		Tags:        []string{"exposure"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 500, 503, 504},
	}, func(ctx context.Context, input *models.AECRequest) (*models.AECResponse, error) {
		cfg := s.options.AEC
		if body := input.Body; body != nil {
			if body.Target != nil {
				cfg.Target = *body.Target
			}
			if body.Tolerance != nil {
				cfg.Tolerance = *body.Tolerance
			}
			if body.MaxAttempts != nil {
				cfg.MaxAttempts = *body.MaxAttempts
			}
		}

		res, err := s.isp.RunAutoExposure(ctx, cfg)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.AECResponse{
			Body: models.AECData{
				Outcome:    res.Outcome.String(),
				Iterations: res.Iterations,
				Attempts:   res.Attempts,
				Gain:       res.Gain,
				Exposure:   res.Exposure,
				Luminance:  res.Luminance,
			},
		}, nil
	})
}

// persist stores a preset in the tuning file when requested and configured.
func (s *Server) persist(requested bool, update func(*config.Tuning)) (bool, error) {
	if !requested || s.options.TuningPath == "" {
		return false, nil
	}

	t, err := config.LoadTuning(s.options.TuningPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	update(&t)
	if err := config.SaveTuning(s.options.TuningPath, t); err != nil {
		return false, err
	}
	if s.options.TuningSaved != nil {
		s.options.TuningSaved()
	}
	s.logger.Info("Tuning file updated", "path", s.options.TuningPath, "contrast", t.Contrast, "illuminant", t.Illuminant)
	return true, nil
}
