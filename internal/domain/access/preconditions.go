package access

import (
	"errors"
	"fmt"

	"github.com/medtrust/console/internal/domain/network"
)

var (
	// ErrRequestInFlight is returned when a submit is attempted while a
	// previous one for the same orchestrator has not settled yet.
	ErrRequestInFlight = errors.New("access request already in flight")

	// ErrJustificationRequired is returned when the tier demands a
	// justification and none has been provided yet. The caller should
	// collect one and submit again.
	ErrJustificationRequired = errors.New("justification required")
)

// PreconditionError reports a client-side gate failure. No network call is
// made when one of these fires.
type PreconditionError struct {
	Tier   Tier
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s access blocked: %s", e.Tier, e.Reason)
}

// checkPreconditions gates an attempt before anything leaves the client.
// A patient must always be selected; normal and temporary access only make
// sense from inside the hospital network, restricted access only from
// outside it. Emergency access has no network constraint.
func checkPreconditions(tier Tier, patient string, net network.Status) error {
	if patient == "" {
		return &PreconditionError{Tier: tier, Reason: "no patient selected"}
	}
	switch tier {
	case TierNormal, TierTemporary:
		if !net.InsideNetwork {
			return &PreconditionError{Tier: tier, Reason: "only available inside the hospital network"}
		}
	case TierRestricted:
		if net.InsideNetwork {
			return &PreconditionError{Tier: tier, Reason: "not applicable inside the hospital network, use normal access"}
		}
	}
	return nil
}
