package inspection

import "errors"

// ErrValidation marks malformed requests. Callers report it without retry.
var ErrValidation = errors.New("inspection: invalid request")

// ErrNoItems is returned when a powder/type combination requires nothing.
// Beginning an inspection with no required items is a failure, not an
// empty success.
var ErrNoItems = errors.New("inspection: no inspection items required")

// ErrNoValidMeasurements is returned when every submitted replicate was
// blank or unusable.
var ErrNoValidMeasurements = errors.New("inspection: no valid measurements")
