package decision

import (
	"encoding/json"
	"log/slog"

	"govdociq/internal/pipeline/modules"
)

// defaultWeights is the shipped fraud component blend.
var defaultWeights = map[string]float64{
	"image":      0.35,
	"behavioral": 0.35,
	"issuer":     0.30,
}

// Calibration blends the fraud components with deployment-tunable weights.
// Overrides are renormalized so the weights always sum to 1.
type Calibration struct {
	weights map[string]float64
}

// NewCalibration parses the FRAUD_CALIBRATION_WEIGHTS JSON override, e.g.
// {"image":0.5,"behavioral":0.3,"issuer":0.1}. Malformed input falls back to
// the defaults with a warning rather than failing startup.
func NewCalibration(rawOverride string, logger *slog.Logger) *Calibration {
	weights := map[string]float64{}
	for k, v := range defaultWeights {
		weights[k] = v
	}

	if rawOverride != "" {
		var parsed map[string]float64
		if err := json.Unmarshal([]byte(rawOverride), &parsed); err != nil {
			if logger != nil {
				logger.Warn("invalid fraud calibration override, using defaults", "error", err)
			}
		} else {
			for _, key := range []string{"image", "behavioral", "issuer"} {
				if v, ok := parsed[key]; ok {
					weights[key] = v
				}
			}
		}
	}

	total := weights["image"] + weights["behavioral"] + weights["issuer"]
	if total > 0 {
		for k, v := range weights {
			weights[k] = v / total
		}
	}
	return &Calibration{weights: weights}
}

// Score implements modules.Calibrator.
func (c *Calibration) Score(imageScore, behavioralScore, issuerScore float64) float64 {
	out := imageScore*c.weights["image"] +
		behavioralScore*c.weights["behavioral"] +
		issuerScore*c.weights["issuer"]
	return modules.Round3(modules.Clamp01(out))
}

// Weights exposes the normalized blend for explainability payloads.
func (c *Calibration) Weights() map[string]float64 {
	out := make(map[string]float64, len(c.weights))
	for k, v := range c.weights {
		out[k] = v
	}
	return out
}
