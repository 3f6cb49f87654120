package inspection

import (
	"errors"
	"testing"

	"powderlab/internal/store"
)

func mustInfo(t *testing.T, item string) store.AnalyteInfo {
	t.Helper()
	info, ok := store.AnalyteByItem(item)
	if !ok {
		t.Fatalf("unknown item %s", item)
	}
	return info
}

func TestEvaluateScalarAveragesAndRounds(t *testing.T) {
	info := mustInfo(t, "FlowRate")

	measurement, err := evaluateScalar(info, []string{"30", "31", ""}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if *measurement.Average != 30.5 {
		t.Errorf("expected average 30.5, got %v", *measurement.Average)
	}
	if measurement.Raw[2] != nil {
		t.Error("blank replicate should stay nil")
	}

	// Order of replicates must not matter.
	reversed, err := evaluateScalar(info, []string{"31", "30"}, nil)
	if err != nil {
		t.Fatalf("evaluate reversed: %v", err)
	}
	if *reversed.Average != *measurement.Average {
		t.Errorf("average depends on order: %v vs %v", *reversed.Average, *measurement.Average)
	}

	// Re-rounding an already rounded average changes nothing.
	if round2(*measurement.Average) != *measurement.Average {
		t.Error("round2 not idempotent")
	}
}

func TestEvaluateScalarRejectsEmptyAndGarbage(t *testing.T) {
	info := mustInfo(t, "FlowRate")

	if _, err := evaluateScalar(info, []string{"", "  ", ""}, nil); !errors.Is(err, ErrNoValidMeasurements) {
		t.Errorf("expected ErrNoValidMeasurements, got %v", err)
	}
	if _, err := evaluateScalar(info, []string{"abc"}, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for garbage, got %v", err)
	}
}

func TestEvaluateScalarRejectsExcessReplicates(t *testing.T) {
	if _, err := evaluateScalar(mustInfo(t, "FlowRate"), []string{"30", "31", "32", "33"}, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for 4 values, got %v", err)
	}
	pairs := [][2]string{{"10", "9"}, {"10", "9"}, {"10", "9"}, {"10", "9"}}
	if _, err := evaluateScalar(mustInfo(t, "Moisture"), nil, pairs); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for 4 pairs, got %v", err)
	}
}

func TestEvaluateApparentDensity(t *testing.T) {
	info := mustInfo(t, "ApparentDensity")

	// (175 - 100) / 25 = 3.0 per replicate.
	measurement, err := evaluateScalar(info, nil, [][2]string{{"100", "175"}, {"100", "180"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if *measurement.Raw[0] != 3.0 || *measurement.Raw[1] != 3.2 {
		t.Errorf("unexpected derived replicates: %v %v", *measurement.Raw[0], *measurement.Raw[1])
	}
	if *measurement.Average != 3.1 {
		t.Errorf("expected average 3.1, got %v", *measurement.Average)
	}
	if measurement.RawPairs[0][0] == nil || *measurement.RawPairs[0][1] != 175 {
		t.Error("submitted weights should be retained")
	}
}

func TestEvaluateMoistureSkipsZeroDenominator(t *testing.T) {
	info := mustInfo(t, "Moisture")

	// (10 - 9.95)/10 * 100 = 0.5; zero initial weight skips the replicate.
	measurement, err := evaluateScalar(info, nil, [][2]string{{"10", "9.95"}, {"0", "5"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if measurement.Raw[1] != nil {
		t.Error("zero-denominator replicate should be skipped")
	}
	if *measurement.Average != 0.5 {
		t.Errorf("expected average 0.5, got %v", *measurement.Average)
	}
}

func TestEvaluateAsh(t *testing.T) {
	info := mustInfo(t, "Ash")

	// (20 - 0.1)/20 * 100 = 99.5.
	measurement, err := evaluateScalar(info, nil, [][2]string{{"20", "0.1"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if *measurement.Average != 99.5 {
		t.Errorf("expected average 99.5, got %v", *measurement.Average)
	}
}

func TestEvaluatePairSkipsIncompletePair(t *testing.T) {
	info := mustInfo(t, "Moisture")

	measurement, err := evaluateScalar(info, nil, [][2]string{{"10", ""}, {"10", "9"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if measurement.Raw[0] != nil {
		t.Error("incomplete pair should not derive a value")
	}
	if *measurement.Average != 10.0 {
		t.Errorf("expected average 10.0, got %v", *measurement.Average)
	}
}

func TestJudgeBounds(t *testing.T) {
	min, max := 25.0, 35.0
	bound := store.Bound{Min: &min, Max: &max, Type: store.SpecDaily}

	cases := []struct {
		average float64
		want    store.Verdict
	}{
		{30.5, store.VerdictPass},
		{40.5, store.VerdictFail},
		{24.99, store.VerdictFail},
		{25.0, store.VerdictPass},
		{35.0, store.VerdictPass},
	}
	for _, tc := range cases {
		if got := judge(tc.average, bound); got != tc.want {
			t.Errorf("judge(%v) = %s, want %s", tc.average, got, tc.want)
		}
	}

	// Open-ended bounds only fail on the bounded side.
	if judge(1000, store.Bound{Min: &min, Type: store.SpecDaily}) != store.VerdictPass {
		t.Error("missing max should not fail high values")
	}
}

func TestEvaluateParticleFailsClosedOnMissingBucket(t *testing.T) {
	buckets := []store.ParticleSizeBucket{
		{PowderName: "P1", MeshSize: "+100", Min: 0, Max: 5},
		{PowderName: "P1", MeshSize: "-325", Min: 10, Max: 30},
	}

	results, verdict, err := evaluateParticle(buckets, []ParticleSubmission{
		{MeshSize: "+100", Value1: "2", Value2: "4"},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict != store.VerdictFail {
		t.Error("missing required bucket must fail the composite")
	}
	if len(results) != 2 {
		t.Fatalf("expected results for every required bucket, got %d", len(results))
	}
	if results[0].Verdict != store.VerdictPass || *results[0].Average != 3 {
		t.Errorf("submitted bucket mis-judged: %+v", results[0])
	}
	if results[1].Verdict != store.VerdictFail || results[1].Average != nil {
		t.Errorf("missing bucket should fail with null values: %+v", results[1])
	}
}

func TestEvaluateParticleAllPass(t *testing.T) {
	buckets := []store.ParticleSizeBucket{
		{PowderName: "P1", MeshSize: "+100", Min: 0, Max: 5},
		{PowderName: "P1", MeshSize: "-325", Min: 10, Max: 30},
	}

	_, verdict, err := evaluateParticle(buckets, []ParticleSubmission{
		{MeshSize: "+100", Value1: "2", Value2: "4"},
		{MeshSize: "-325", Value1: "20"},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict != store.VerdictPass {
		t.Error("all buckets in range should pass the composite")
	}
}

func TestEvaluateParticleOutOfRange(t *testing.T) {
	buckets := []store.ParticleSizeBucket{{PowderName: "P1", MeshSize: "+100", Min: 0, Max: 5}}

	results, verdict, err := evaluateParticle(buckets, []ParticleSubmission{
		{MeshSize: "+100", Value1: "8"},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict != store.VerdictFail || results[0].Verdict != store.VerdictFail {
		t.Error("out-of-range bucket must fail")
	}
}
