package engine

import "fmt"

// Metric selects how a window of samples is reduced to a single level.
type Metric string

const (
	MetricMeanAbs Metric = "mean_abs"
	MetricRMS     Metric = "rms"
)

// ParseMetric maps a configuration string to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricMeanAbs:
		return MetricMeanAbs, nil
	case MetricRMS:
		return MetricRMS, nil
	}
	return "", fmt.Errorf("unknown amplitude metric %q", s)
}

// Detector is an energy-based speech/silence classifier. It keeps no state
// between calls: the same window and threshold always give the same answer.
//
// It is deliberately crude. Background noise above the threshold reads as
// speech and quiet speech below it reads as silence.
type Detector struct {
	Threshold float64 // normalized level, in (0,1)
	Metric    Metric
}

// NewDetector returns a detector using the mean absolute amplitude.
func NewDetector(threshold float64) Detector {
	return Detector{Threshold: threshold, Metric: MetricMeanAbs}
}

// Level returns the normalized level of the window under the detector's metric.
func (d Detector) Level(window []int16) float64 {
	if d.Metric == MetricRMS {
		return RMS(window)
	}
	return MeanAbs(window)
}

// IsSpeech reports whether the window's level exceeds the threshold.
func (d Detector) IsSpeech(window []int16) bool {
	return d.Level(window) > d.Threshold
}
