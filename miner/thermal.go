package miner

import (
	"fmt"
	"sync"
)

// MinTemperatureThresholdCelsius and MaxTemperatureThresholdCelsius bound
// set_temperature_threshold's accepted range (spec §4.8).
const (
	MinTemperatureThresholdCelsius = 60
	MaxTemperatureThresholdCelsius = 95
)

// IntensitySource supplies a 0-100 work-group intensity percentage each
// dispatch scales by (spec §4.7 "Thermal/throttle integration"). The
// sensor and threshold logic behind a real one is a collaborator; the
// miner only ever consumes the resulting value.
type IntensitySource interface {
	Intensity() int
}

// FixedIntensity is the default IntensitySource when no thermal controller
// is configured: full throughput, unconditionally.
type FixedIntensity struct{}

func (FixedIntensity) Intensity() int { return 100 }

// ThermalController tracks a configured shutoff threshold and the most
// recently reported device temperature, linearly throttling intensity as
// the reading approaches the threshold (spec §4.7: "when a device's
// temperature exceeds a configured threshold, intensity drops").
type ThermalController struct {
	mu               sync.RWMutex
	thresholdCelsius float64
	currentCelsius   float64
}

// NewThermalController constructs a controller at thresholdCelsius, which
// must already satisfy the RPC-level [60, 95] bound.
func NewThermalController(thresholdCelsius float64) *ThermalController {
	return &ThermalController{thresholdCelsius: thresholdCelsius}
}

// SetThreshold updates the shutoff threshold, rejecting anything outside
// the spec's accepted range (spec §4.8 set_temperature_threshold).
func (t *ThermalController) SetThreshold(celsius float64) error {
	if celsius < MinTemperatureThresholdCelsius || celsius > MaxTemperatureThresholdCelsius {
		return fmt.Errorf("miner: temperature threshold must be within [%d, %d] celsius", MinTemperatureThresholdCelsius, MaxTemperatureThresholdCelsius)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.thresholdCelsius = celsius
	return nil
}

// ReportTemperature records the latest sensor reading. Called by whatever
// collaborator owns the actual hardware sensor.
func (t *ThermalController) ReportTemperature(celsius float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentCelsius = celsius
}

// Intensity ramps linearly from 100% ten degrees below the threshold down
// to a floor of 1% at or above it, so a throttled GPU still makes forward
// progress instead of stalling outright.
func (t *ThermalController) Intensity() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return intensityFor(t.thresholdCelsius, t.currentCelsius)
}

func intensityFor(threshold, current float64) int {
	rampStart := threshold - 10
	switch {
	case current <= rampStart:
		return 100
	case current >= threshold:
		return 1
	default:
		frac := (threshold - current) / (threshold - rampStart)
		intensity := int(frac * 100)
		if intensity < 1 {
			intensity = 1
		}
		return intensity
	}
}

// Status is the snapshot get_gpu_dashboard_data reads.
type Status struct {
	ThresholdCelsius float64
	CurrentCelsius   float64
	IntensityPercent int
}

func (t *ThermalController) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{
		ThresholdCelsius: t.thresholdCelsius,
		CurrentCelsius:   t.currentCelsius,
		IntensityPercent: intensityFor(t.thresholdCelsius, t.currentCelsius),
	}
}

// ScaleWorkGroups applies an intensity percentage (clamped to [1,100]) to
// a baseline GPU work-group count, never scaling down to zero.
func ScaleWorkGroups(baseline int, intensityPercent int) int {
	if intensityPercent > 100 {
		intensityPercent = 100
	}
	if intensityPercent < 1 {
		intensityPercent = 1
	}
	scaled := baseline * intensityPercent / 100
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}
