package blending

import (
	"errors"
	"fmt"
	"math"

	"powderlab/internal/store"
)

// validateLots confirms every claimed sub-lot has a finalized, passing
// incoming inspection under the claimed powder. The whole submission
// fails on the first bad sub-lot; nothing is partially accepted.
func validateLots(tx *store.Tx, powderName string, lots []string) error {
	if len(lots) == 0 {
		return fmt.Errorf("%w: material lot is required", ErrValidation)
	}
	for _, lot := range lots {
		result, err := tx.GetResult(powderName, lot)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if result != nil && result.Finalized() && result.Category == store.CategoryIncoming {
			if result.FinalResult != store.VerdictPass {
				return fmt.Errorf("%w: %s/%s finalized %s", ErrFailedLot, powderName, lot, result.FinalResult)
			}
			continue
		}

		// The lot may exist under another powder; distinguish a wrong
		// material from a lot nobody has inspected.
		owners, err := tx.PowdersForLot(lot)
		if err != nil {
			return err
		}
		for _, owner := range owners {
			if owner != powderName {
				return fmt.Errorf("%w: lot %q is registered under %q, not %q", ErrWrongMaterial, lot, owner, powderName)
			}
		}
		return fmt.Errorf("%w: no finalized incoming inspection for %s/%s", ErrUnknownLot, powderName, lot)
	}
	return nil
}

// weightDeviation computes the percentage deviation of actual from
// target, rounded to two decimals. A zero target deviates by zero.
func weightDeviation(target, actual float64) float64 {
	if target == 0 {
		return 0
	}
	return math.Round((actual-target)/target*100*100) / 100
}

// checkTolerance validates a weighing against the tolerance band.
func checkTolerance(target, actual, tolerancePercent float64) (float64, error) {
	deviation := weightDeviation(target, actual)
	if math.Abs(deviation) > tolerancePercent {
		return deviation, &ToleranceError{Deviation: deviation, Tolerance: tolerancePercent}
	}
	return deviation, nil
}
