package enums

import "fmt"

// RequirementStatus tracks a buyer requirement through negotiation.
type RequirementStatus string

const (
	RequirementStatusDraft     RequirementStatus = "draft"
	RequirementStatusActive    RequirementStatus = "active"
	RequirementStatusViewed    RequirementStatus = "viewed"
	RequirementStatusResponded RequirementStatus = "responded"
	RequirementStatusSelected  RequirementStatus = "selected"
	RequirementStatusClosed    RequirementStatus = "closed"
	RequirementStatusConfirmed RequirementStatus = "confirmed"
)

var validRequirementStatuses = []RequirementStatus{
	RequirementStatusDraft,
	RequirementStatusActive,
	RequirementStatusViewed,
	RequirementStatusResponded,
	RequirementStatusSelected,
	RequirementStatusClosed,
	RequirementStatusConfirmed,
}

func (s RequirementStatus) String() string {
	return string(s)
}

func (s RequirementStatus) IsValid() bool {
	for _, candidate := range validRequirementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition may leave the status.
func (s RequirementStatus) IsTerminal() bool {
	return s == RequirementStatusClosed || s == RequirementStatusConfirmed
}

// AcceptsQuotes reports whether merchants may still respond.
func (s RequirementStatus) AcceptsQuotes() bool {
	switch s {
	case RequirementStatusActive, RequirementStatusViewed, RequirementStatusResponded:
		return true
	default:
		return false
	}
}

func ParseRequirementStatus(value string) (RequirementStatus, error) {
	for _, candidate := range validRequirementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid requirement status %q", value)
}
