package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/ispctl/internal/isp"
)

// Tuning is the content of the tuning file: the presets the daemon keeps
// applied to the ISP. Empty fields leave the corresponding block untouched.
type Tuning struct {
	Contrast   string `toml:"contrast,omitempty" json:"contrast,omitempty"`
	Illuminant string `toml:"illuminant,omitempty" json:"illuminant,omitempty"`
}

// Params builds the parameter block for the tuning presets.
func (t Tuning) Params() (isp.Params, error) {
	var params isp.Params
	if t.Illuminant != "" {
		ill, err := isp.ParseIlluminant(t.Illuminant)
		if err != nil {
			return isp.Params{}, err
		}
		p, err := isp.BuildIlluminantProfile(ill)
		if err != nil {
			return isp.Params{}, err
		}
		params.Merge(p)
	}
	if t.Contrast != "" {
		c, err := isp.ParseContrast(t.Contrast)
		if err != nil {
			return isp.Params{}, err
		}
		p, err := isp.BuildContrastCurve(c)
		if err != nil {
			return isp.Params{}, err
		}
		params.Merge(p)
	}
	return params, nil
}

// Validate checks that every preset name resolves.
func (t Tuning) Validate() error {
	_, err := t.Params()
	return err
}

// LoadTuning reads and validates a tuning file.
func LoadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}

	var t Tuning
	if err := toml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return t, nil
}

// SaveTuning writes the tuning file, replacing it atomically.
func SaveTuning(path string, t Tuning) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create tuning directory: %w", err)
	}

	data, err := toml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tuning: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tuning-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create tuning file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write tuning file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write tuning file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace tuning file: %w", err)
	}
	return nil
}
