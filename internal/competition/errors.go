package competition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHypothesisNotFound is returned when an operation names an unregistered
// hypothesis id.
var ErrHypothesisNotFound = errors.New("hypothesis not found")

// ValidationError rejects a malformed hypothesis. Registration performs no
// mutation when validation fails; Violations lists every problem found.
type ValidationError struct {
	HypothesisID string
	Violations   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hypothesis %s failed validation: %s",
		e.HypothesisID, strings.Join(e.Violations, "; "))
}

// UnsupportedMechanismError marks a consensus mechanism that is declared but
// has no real algorithm yet. Callers should treat it as "not yet supported"
// rather than a fault.
type UnsupportedMechanismError struct {
	Mechanism MechanismType
}

func (e *UnsupportedMechanismError) Error() string {
	return fmt.Sprintf("consensus mechanism %q is not yet supported", e.Mechanism)
}
