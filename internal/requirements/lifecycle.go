package requirements

import (
	"time"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

var allowedTransitions = map[enums.RequirementStatus][]enums.RequirementStatus{
	enums.RequirementStatusDraft: {
		enums.RequirementStatusActive,
		enums.RequirementStatusClosed,
	},
	enums.RequirementStatusActive: {
		enums.RequirementStatusViewed,
		enums.RequirementStatusResponded,
		enums.RequirementStatusSelected,
		enums.RequirementStatusClosed,
	},
	enums.RequirementStatusViewed: {
		enums.RequirementStatusResponded,
		enums.RequirementStatusSelected,
		enums.RequirementStatusClosed,
	},
	enums.RequirementStatusResponded: {
		enums.RequirementStatusSelected,
		enums.RequirementStatusClosed,
	},
	// selected -> closed only happens through order cancellation.
	enums.RequirementStatusSelected: {
		enums.RequirementStatusConfirmed,
		enums.RequirementStatusClosed,
	},
}

// InitialStatus is draft for saved drafts and active otherwise.
func InitialStatus(isDraft bool) enums.RequirementStatus {
	if isDraft {
		return enums.RequirementStatusDraft
	}
	return enums.RequirementStatusActive
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to enums.RequirementStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a typed error when from -> to is not allowed.
func CheckTransition(req *models.Requirement, to enums.RequirementStatus) error {
	if req.Status.IsTerminal() {
		return ErrAlreadyTerminal(req.ID, req.Status)
	}
	if !CanTransition(req.Status, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "requirement status transition not allowed").
			WithReason(ReasonInvalidTransition).
			WithDetails(map[string]any{"requirement_id": req.ID, "from": req.Status, "to": to})
	}
	return nil
}

// Editable reports whether the buyer may still change the content fields.
func Editable(status enums.RequirementStatus) bool {
	switch status {
	case enums.RequirementStatusDraft, enums.RequirementStatusActive, enums.RequirementStatusViewed:
		return true
	default:
		return false
	}
}

// IsExpired compares civil dates: a deadline strictly before today is expired.
func IsExpired(deadline, today time.Time) bool {
	dy, dm, dd := deadline.Date()
	ty, tm, td := today.Date()
	if dy != ty {
		return dy < ty
	}
	if dm != tm {
		return dm < tm
	}
	return dd < td
}

// expirable statuses are those still in the bidding phase.
func expirable(status enums.RequirementStatus) bool {
	return status == enums.RequirementStatusDraft || status.AcceptsQuotes()
}

// EffectiveStatus is the status used for matching and listing. Expiry is
// evaluated here at read time; the stored status is never rewritten by it.
func EffectiveStatus(req models.Requirement, today time.Time) enums.RequirementStatus {
	if expirable(req.Status) && IsExpired(req.DeliveryDeadline, today) {
		return enums.RequirementStatusClosed
	}
	return req.Status
}

// Expired reports whether EffectiveStatus closed the requirement because of its deadline.
func Expired(req models.Requirement, today time.Time) bool {
	return expirable(req.Status) && IsExpired(req.DeliveryDeadline, today)
}

// OpenForQuotes is the precondition for quote submission.
func OpenForQuotes(req models.Requirement, today time.Time) bool {
	return EffectiveStatus(req, today).AcceptsQuotes()
}

// Calendar turns the wall clock into the civil date used for expiry.
type Calendar struct {
	Now      func() time.Time
	Location *time.Location
}

// NewCalendar builds a calendar on time.Now in loc (UTC when nil).
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Now: time.Now, Location: loc}
}

// Today returns midnight UTC of the current civil date in the calendar location.
func (c Calendar) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Timestamp returns the current instant in UTC.
func (c Calendar) Timestamp() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}
