package engine

import (
	"math"
	"testing"
)

func constant(n int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		// Alternate sign so mean absolute and RMS agree for a square wave.
		if i%2 == 0 {
			out[i] = Amplitude(amp)
		} else {
			out[i] = Amplitude(-amp)
		}
	}
	return out
}

func TestMeanAbsAndRMS(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		want float64
	}{
		{"empty", nil, 0},
		{"zeros", make([]int16, 100), 0},
		{"half scale", constant(100, 0.5), 0.5},
		{"quiet", constant(100, 0.0001), 0.0001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MeanAbs(tt.in); math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("MeanAbs = %v, want %v", got, tt.want)
			}
			if got := RMS(tt.in); math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectorSilenceBelowThreshold(t *testing.T) {
	d := NewDetector(0.008)
	for _, amp := range []float64{0, 0.0001, 0.001, 0.0079} {
		if d.IsSpeech(constant(1600, amp)) {
			t.Errorf("amplitude %v classified as speech", amp)
		}
	}
	if !d.IsSpeech(constant(1600, 0.5)) {
		t.Error("amplitude 0.5 classified as silence")
	}
}

func TestDetectorDeterministic(t *testing.T) {
	window := constant(800, 0.01)
	for _, m := range []Metric{MetricMeanAbs, MetricRMS} {
		d := Detector{Threshold: 0.008, Metric: m}
		first := d.IsSpeech(window)
		for i := 0; i < 10; i++ {
			if d.IsSpeech(window) != first {
				t.Fatalf("metric %s: result changed between calls", m)
			}
		}
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric(""); err != nil || m != MetricMeanAbs {
		t.Errorf("ParseMetric(\"\") = %v, %v", m, err)
	}
	if m, err := ParseMetric("rms"); err != nil || m != MetricRMS {
		t.Errorf("ParseMetric(rms) = %v, %v", m, err)
	}
	if _, err := ParseMetric("zcr"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestSampleRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 1234}
	out := BytesToSamples(SamplesToBytes(in))
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
	if got := len(BytesToSamples([]byte{1, 2, 3})); got != 1 {
		t.Errorf("odd byte input gave %d samples, want 1", got)
	}
}
