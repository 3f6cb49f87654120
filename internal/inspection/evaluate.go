package inspection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"powderlab/internal/store"
)

// apparentDensityCupVolume is the fixed measuring-cup volume in cm³.
const apparentDensityCupVolume = 25.0

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// parseValue converts one submitted replicate string. Blank entries
// return nil; non-blank entries that fail to parse are a caller error.
func parseValue(raw string) (*float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: value %q is not numeric", ErrValidation, raw)
	}
	return &value, nil
}

// evaluateScalar computes per-replicate values and the rounded average
// for one analyte. The verdict is left unset; judging happens against
// the resolved bound. Direct analytes read values; weight-pair
// analytes read pairs and derive each replicate from its two weights.
func evaluateScalar(info store.AnalyteInfo, values []string, pairs [][2]string) (store.Measurement, error) {
	var measurement store.Measurement

	switch info.Kind {
	case store.KindWeightPair:
		if len(pairs) > 3 {
			return measurement, fmt.Errorf("%w: at most 3 replicates, got %d", ErrValidation, len(pairs))
		}
		for i, pair := range pairs {
			first, err := parseValue(pair[0])
			if err != nil {
				return measurement, err
			}
			second, err := parseValue(pair[1])
			if err != nil {
				return measurement, err
			}
			measurement.RawPairs[i][0] = first
			measurement.RawPairs[i][1] = second
			if first == nil || second == nil {
				continue
			}
			derived, ok := derive(info.Analyte, *first, *second)
			if !ok {
				continue
			}
			rounded := round2(derived)
			measurement.Raw[i] = &rounded
		}
	default:
		if len(values) > 3 {
			return measurement, fmt.Errorf("%w: at most 3 replicates, got %d", ErrValidation, len(values))
		}
		for i, raw := range values {
			value, err := parseValue(raw)
			if err != nil {
				return measurement, err
			}
			measurement.Raw[i] = value
		}
	}

	var sum float64
	var count int
	for _, value := range measurement.Raw {
		if value != nil {
			sum += *value
			count++
		}
	}
	if count == 0 {
		return measurement, fmt.Errorf("%w: %s", ErrNoValidMeasurements, info.ItemName)
	}
	average := round2(sum / float64(count))
	measurement.Average = &average
	return measurement, nil
}

// derive computes one replicate value from a weight pair. A zero
// denominator skips the replicate instead of failing the computation.
func derive(analyte store.Analyte, first, second float64) (float64, bool) {
	switch analyte {
	case store.AnalyteApparentDensity:
		// first = empty cup, second = cup plus powder.
		return (second - first) / apparentDensityCupVolume, true
	case store.AnalyteMoisture:
		// first = initial, second = dried.
		if first == 0 {
			return 0, false
		}
		return (first - second) / first * 100, true
	case store.AnalyteAsh:
		// first = initial, second = ash residue.
		if first == 0 {
			return 0, false
		}
		return (first - second) / first * 100, true
	}
	return 0, false
}

// judge compares a rounded average against the resolved bound.
func judge(average float64, bound store.Bound) store.Verdict {
	if bound.Min != nil && average < *bound.Min {
		return store.VerdictFail
	}
	if bound.Max != nil && average > *bound.Max {
		return store.VerdictFail
	}
	return store.VerdictPass
}

// ParticleSubmission is the per-bucket payload of a particle-size
// submission. Blank values are treated as absent.
type ParticleSubmission struct {
	MeshSize string
	Value1   string
	Value2   string
}

// evaluateParticle judges every bucket the specification requires, not
// just the submitted ones. A required bucket missing from the payload
// fails closed with null values. The composite verdict fails if any
// bucket fails.
func evaluateParticle(buckets []store.ParticleSizeBucket, submissions []ParticleSubmission) ([]store.ParticleResult, store.Verdict, error) {
	byMesh := make(map[string]ParticleSubmission, len(submissions))
	for _, submission := range submissions {
		byMesh[strings.TrimSpace(submission.MeshSize)] = submission
	}

	results := make([]store.ParticleResult, 0, len(buckets))
	composite := store.VerdictPass
	for _, bucket := range buckets {
		result := store.ParticleResult{MeshSize: bucket.MeshSize, Verdict: store.VerdictFail}

		submission, ok := byMesh[bucket.MeshSize]
		if ok {
			first, err := parseValue(submission.Value1)
			if err != nil {
				return nil, "", err
			}
			second, err := parseValue(submission.Value2)
			if err != nil {
				return nil, "", err
			}
			result.Value1 = first
			result.Value2 = second

			var sum float64
			var count int
			for _, value := range []*float64{first, second} {
				if value != nil {
					sum += *value
					count++
				}
			}
			if count > 0 {
				average := round2(sum / float64(count))
				result.Average = &average
				if average >= bucket.Min && average <= bucket.Max {
					result.Verdict = store.VerdictPass
				}
			}
		}

		if result.Verdict == store.VerdictFail {
			composite = store.VerdictFail
		}
		results = append(results, result)
	}
	return results, composite, nil
}

// aggregateVerdict folds per-analyte verdicts and the particle
// composite into the final result. FAIL if anything failed.
func aggregateVerdict(result *store.InspectionResult) store.Verdict {
	for _, measurement := range result.Scalars {
		if measurement.Verdict == store.VerdictFail {
			return store.VerdictFail
		}
	}
	if result.ParticleVerdict == store.VerdictFail {
		return store.VerdictFail
	}
	return store.VerdictPass
}
