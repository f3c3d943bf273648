package service

import (
	"time"

	"github.com/okian/pitchside/internal/domain/model"
)

// CreateInput is the payload of CreateAssessment.
type CreateInput struct {
	PlayerID   string
	Date       time.Time
	Period     model.Period // empty means Monthly
	Comments   string
	CoachNotes string
	Ratings    []model.Rating
	Finalized  bool
}

// UpdateInput is a partial update. Nil fields are left untouched.
// Ratings replaces the whole score set when non-nil; an empty non-nil slice
// clears it.
type UpdateInput struct {
	Date       *time.Time
	Period     *model.Period
	Comments   *string
	CoachNotes *string
	Ratings    []model.Rating
}

// Empty reports whether no field was provided.
func (u UpdateInput) Empty() bool {
	return u.Date == nil && u.Period == nil && u.Comments == nil && u.CoachNotes == nil && u.Ratings == nil
}

func validPeriod(op string, p model.Period) (model.Period, error) {
	parsed, err := model.ParsePeriod(string(p))
	if err != nil {
		return "", model.Invalid(op, "%v", err)
	}
	return parsed, nil
}
