package meta

import (
	"math"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
)

// Calibrate maps a head's raw score to a confidence in [0,1] via
// temperature-scaled sigmoid. The temperature comes from the domain's
// adaptation state, fit by the feedback loop from labeled outcomes: above
// 1 it softens overconfident heads, below 1 it sharpens underconfident
// ones.
func Calibrate(raw float64, state *adaptation.State) float64 {
	temperature := 1.0
	if state != nil && state.Calibration.Temperature > 0 {
		temperature = state.Calibration.Temperature
	}

	confidence := 1.0 / (1.0 + math.Exp(-math.Abs(raw)/temperature))

	// The sigmoid of |raw| lives in [0.5, 1); rescale to use the full
	// confidence range so an uninformative score reads as 0.
	confidence = (confidence - 0.5) * 2.0
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// NextTemperature folds one labeled outcome into the temperature estimate:
// overconfident misses push the temperature up, confident hits pull it
// back toward 1.
func NextTemperature(current, confidence float64, correct bool, alpha float64) float64 {
	if current <= 0 {
		current = 1.0
	}

	target := current
	if !correct && confidence > 0.5 {
		// Overconfident mistake: soften.
		target = current * (1.0 + confidence)
	} else if correct && confidence < 0.5 {
		// Underconfident hit: sharpen.
		target = current * (1.0 - (0.5-confidence)*0.5)
	} else if correct {
		// Confident hit: decay toward neutral.
		target = current + (1.0-current)*0.1
	}

	next := current + alpha*(target-current)
	if next < 0.1 {
		next = 0.1
	}
	if next > 10 {
		next = 10
	}
	return next
}
