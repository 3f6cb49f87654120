package blending

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed consumption or work requests.
var ErrValidation = errors.New("blending: invalid request")

// ErrUnknownLot means a claimed material lot has no finalized incoming
// inspection under any powder.
var ErrUnknownLot = errors.New("blending: unknown material lot")

// ErrWrongMaterial means the lot exists, but only under a different
// powder than the claimed ingredient.
var ErrWrongMaterial = errors.New("blending: lot belongs to a different material")

// ErrFailedLot means the lot was inspected and the incoming inspection
// finalized with a FAIL verdict, so it must not enter a blend.
var ErrFailedLot = errors.New("blending: lot failed incoming inspection")

// ErrIncompleteWork means a completion request arrived before every
// recipe line received a valid input.
var ErrIncompleteWork = errors.New("blending: recipe lines missing material input")

// ToleranceError rejects an out-of-tolerance weighing. The computed
// deviation is surfaced so the operator can decide to re-weigh.
// Nothing is persisted for a rejected attempt.
type ToleranceError struct {
	Deviation float64
	Tolerance float64
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf("blending: weight deviation %.2f%% exceeds tolerance ±%.2f%%", e.Deviation, e.Tolerance)
}
