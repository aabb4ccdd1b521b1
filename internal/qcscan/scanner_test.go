package qcscan

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/socialawy/audioformation/internal/pcm"
	"github.com/socialawy/audioformation/pkg/types"
)

type stubMeasurer struct {
	lufs float64
	err  error
}

func (s stubMeasurer) MeasureLUFS(ctx context.Context, path string) (float64, error) {
	return s.lufs, s.err
}

func speechLikeClip(sampleRate, durationMs int) pcm.Clip {
	n := sampleRate * durationMs / 1000
	samples := make([]int, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		// Loud tone for the first 60% of the clip, near-silence for the
		// trailing 40%, so the lowest-30% frame-energy split lands entirely
		// in the quiet tail and the rest counts as speech.
		if i < n*6/10 {
			samples[i] = int(12000 * math.Sin(2*math.Pi*220*t))
		} else {
			samples[i] = int(5 * math.Sin(2*math.Pi*220*t))
		}
	}
	return pcm.Clip{Samples: samples, SampleRate: sampleRate}
}

func TestScanChunk_AllPass(t *testing.T) {
	clip := speechLikeClip(16000, 1000)
	th := Thresholds{
		SNRMinDB:                    5,
		ClippingThresholdDBFS:       -0.5,
		MaxDurationDeviationPercent: 30,
		LUFSDeviationMax:            3,
		TargetLUFS:                  -16,
	}

	result := ScanChunk(context.Background(), stubMeasurer{lufs: -16.2}, clip, "/tmp/chunk.wav", "ch01_000", clip.DurationMs(), th)

	if result.Status() != types.CheckPass {
		t.Fatalf("Status() = %v, want pass; checks = %+v", result.Status(), result.Checks)
	}
	if _, ok := result.Checks["duration"]; !ok {
		t.Error("expected duration check to run when expectedDurationMs > 0")
	}
}

func TestScanChunk_SkipsDurationWhenNoExpectation(t *testing.T) {
	clip := speechLikeClip(16000, 500)
	th := Thresholds{SNRMinDB: 5, ClippingThresholdDBFS: -0.5, LUFSDeviationMax: 3, TargetLUFS: -16}

	result := ScanChunk(context.Background(), stubMeasurer{lufs: -16}, clip, "/tmp/x.wav", "c", 0, th)
	if _, ok := result.Checks["duration"]; ok {
		t.Error("duration check should be skipped when expectedDurationMs <= 0")
	}
}

func TestCheckClipping_Fails(t *testing.T) {
	samples := make([]int, 1000)
	for i := range samples {
		samples[i] = 32767
	}
	clip := pcm.Clip{Samples: samples, SampleRate: 16000}

	result := checkClipping(clip, -0.5)
	if result.Status != types.CheckFail {
		t.Errorf("Status = %v, want fail", result.Status)
	}
}

func TestCheckClipping_Passes(t *testing.T) {
	clip := pcm.Clip{Samples: make([]int, 1000), SampleRate: 16000}
	result := checkClipping(clip, -0.5)
	if result.Status != types.CheckPass {
		t.Errorf("Status = %v, want pass", result.Status)
	}
}

func TestCheckDuration_Thresholds(t *testing.T) {
	clip := pcm.Clip{Samples: make([]int, 16000), SampleRate: 16000} // 1000ms

	if got := checkDuration(clip, 1000, 30); got.Status != types.CheckPass {
		t.Errorf("exact match: Status = %v, want pass", got.Status)
	}
	// deviation = |1000-800|/800*100 = 25%, within max 30 -> pass
	if got := checkDuration(clip, 800, 30); got.Status != types.CheckPass {
		t.Errorf("deviation 25%%: Status = %v, want pass", got.Status)
	}
	// deviation = |1000-714|/714*100 ~= 40%, within max*1.5=45 -> warn
	if got := checkDuration(clip, 714, 30); got.Status != types.CheckWarn {
		t.Errorf("deviation ~40%%: Status = %v, want warn", got.Status)
	}
	// deviation = |1000-500|/500*100 = 100%, beyond max*1.5 -> fail
	if got := checkDuration(clip, 500, 30); got.Status != types.CheckFail {
		t.Errorf("deviation 100%%: Status = %v, want fail", got.Status)
	}
}

func TestCheckLUFS_MeasurementError(t *testing.T) {
	result := checkLUFS(context.Background(), stubMeasurer{err: errors.New("boom")}, "/tmp/x.wav", -16, 3)
	if result.Status != types.CheckWarn {
		t.Errorf("Status = %v, want warn on measurement error", result.Status)
	}
}

func TestCheckLUFS_Thresholds(t *testing.T) {
	if got := checkLUFS(context.Background(), stubMeasurer{lufs: -16}, "p", -16, 3); got.Status != types.CheckPass {
		t.Errorf("exact: Status = %v, want pass", got.Status)
	}
	if got := checkLUFS(context.Background(), stubMeasurer{lufs: -20}, "p", -16, 3); got.Status != types.CheckFail {
		t.Errorf("deviation 4 > max 3: Status = %v, want fail", got.Status)
	}
}

// Invariant 8: aggregate status is fail if any check failed, else warn if
// any warned, else pass.
func TestQCResult_Status_Aggregation(t *testing.T) {
	result := types.QCResult{
		Checks: map[string]types.CheckResult{
			"snr":      {Status: types.CheckPass},
			"clipping": {Status: types.CheckWarn},
			"lufs":     {Status: types.CheckPass},
		},
	}
	if result.Status() != types.CheckWarn {
		t.Errorf("Status() = %v, want warn", result.Status())
	}

	result.Checks["duration"] = types.CheckResult{Status: types.CheckFail}
	if result.Status() != types.CheckFail {
		t.Errorf("Status() = %v, want fail once any check fails", result.Status())
	}
}
