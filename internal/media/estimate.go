package media

import (
	"context"
	"strings"
)

const (
	// ZipEstimate is the nominal queue estimate for archives; their tracks
	// are only probed once the worker unpacks them.
	ZipEstimate = 1
	// FallbackEstimate applies when the probe fails.
	FallbackEstimate = 60
)

// Ratio maps media duration to expected processing time for the given
// runtime mode and accelerator.
func Ratio(online bool, device string) float64 {
	if online {
		if device == "mps" {
			return 1.0 / 5
		}
		return 1.0 / 10
	}
	if device == "mps" {
		return 1.0 / 3
	}
	return 1.0 / 6
}

// Estimator converts media files into processing-time estimates.
type Estimator struct {
	Online bool
	Device string

	probe func(ctx context.Context, path string) (float64, error)
}

func NewEstimator(online bool, device string) *Estimator {
	return &Estimator{Online: online, Device: device, probe: Duration}
}

// NewEstimatorWithProbe injects a probe function for testing.
func NewEstimatorWithProbe(online bool, device string, probe func(context.Context, string) (float64, error)) *Estimator {
	return &Estimator{Online: online, Device: device, probe: probe}
}

// Estimate returns the processing-time estimate and the probed media
// duration, both in seconds. Archives get the nominal estimate. When the
// probe fails the estimate falls back to 60 s and the duration is -1 so
// callers can distinguish a best-effort guess from a real probe.
func (e *Estimator) Estimate(ctx context.Context, path string) (estimate, duration float64) {
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		return ZipEstimate, ZipEstimate
	}
	runTime, err := e.probe(ctx, path)
	if err != nil {
		return FallbackEstimate, -1
	}
	return runTime * Ratio(e.Online, e.Device), runTime
}
