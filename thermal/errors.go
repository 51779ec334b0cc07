package thermal

import "errors"

// ErrTooFewCells is returned by New when the configured cell count cannot
// satisfy the heater/interior/sensor/ambient layout spec.md requires.
var ErrTooFewCells = errors.New("thermal: too few metal cells")
