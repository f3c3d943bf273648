package api

import (
	"time"

	service "github.com/okian/pitchside/internal/app"
	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
)

// ratingRequest is one (skill, score) pair. The score range is enforced by
// the skill validator so the error carries the skill id.
type ratingRequest struct {
	SkillID string `json:"skillId" validate:"required"`
	Score   int    `json:"score"`
	Notes   string `json:"notes"   validate:"max=2000"`
}

type createRequest struct {
	PlayerID       string          `json:"playerId"       validate:"required"`
	AssessmentDate string          `json:"assessmentDate" validate:"required,datetime=2006-01-02"`
	Period         string          `json:"period"         validate:"omitempty,oneof=Monthly Quarterly"`
	Comments       string          `json:"comments"       validate:"max=5000"`
	CoachNotes     string          `json:"coachNotes"     validate:"max=5000"`
	Finalized      bool            `json:"finalized"`
	Scores         []ratingRequest `json:"scores"         validate:"dive"`
}

// updateRequest distinguishes absent fields (nil) from provided ones.
// "scores": [] clears the score set; an absent or null scores key keeps it.
type updateRequest struct {
	AssessmentDate *string         `json:"assessmentDate" validate:"omitempty,datetime=2006-01-02"`
	Period         *string         `json:"period"         validate:"omitempty,oneof=Monthly Quarterly"`
	Comments       *string         `json:"comments"       validate:"omitempty,max=5000"`
	CoachNotes     *string         `json:"coachNotes"     validate:"omitempty,max=5000"`
	Scores         []ratingRequest `json:"scores"         validate:"omitempty,dive"`
}

func toRatings(in []ratingRequest) []model.Rating {
	if in == nil {
		return nil
	}
	out := make([]model.Rating, len(in))
	for i, r := range in {
		out[i] = model.Rating{SkillID: r.SkillID, Score: r.Score, Notes: r.Notes}
	}
	return out
}

func (c createRequest) input() service.CreateInput {
	date, _ := time.Parse(time.DateOnly, c.AssessmentDate)
	return service.CreateInput{
		PlayerID:   c.PlayerID,
		Date:       date,
		Period:     model.Period(c.Period),
		Comments:   c.Comments,
		CoachNotes: c.CoachNotes,
		Ratings:    toRatings(c.Scores),
		Finalized:  c.Finalized,
	}
}

func (u updateRequest) input() service.UpdateInput {
	in := service.UpdateInput{
		Comments:   u.Comments,
		CoachNotes: u.CoachNotes,
		Ratings:    toRatings(u.Scores),
	}
	if u.AssessmentDate != nil {
		date, _ := time.Parse(time.DateOnly, *u.AssessmentDate)
		in.Date = &date
	}
	if u.Period != nil {
		p := model.Period(*u.Period)
		in.Period = &p
	}
	return in
}

type scoreResponse struct {
	ID            string `json:"id"`
	SkillID       string `json:"skillId"`
	Score         int    `json:"score"`
	Notes         string `json:"notes,omitempty"`
	PreviousScore *int   `json:"previousScore"`
	Improvement   *int   `json:"improvement"`
}

type assessmentResponse struct {
	ID             string          `json:"id"`
	PlayerID       string          `json:"playerId"`
	AssessorID     string          `json:"assessorId"`
	AssessmentDate string          `json:"assessmentDate"`
	Period         string          `json:"period"`
	Comments       string          `json:"comments"`
	CoachNotes     string          `json:"coachNotes"`
	Finalized      bool            `json:"finalized"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Scores         []scoreResponse `json:"scores"`
}

func toAssessment(a model.Assessment) assessmentResponse {
	scores := make([]scoreResponse, len(a.Scores))
	for i, s := range a.Scores {
		scores[i] = scoreResponse{
			ID:            s.ID,
			SkillID:       s.SkillID,
			Score:         s.Score,
			Notes:         s.Notes,
			PreviousScore: s.PreviousScore,
			Improvement:   s.Improvement,
		}
	}
	return assessmentResponse{
		ID:             a.ID,
		PlayerID:       a.PlayerID,
		AssessorID:     a.AssessorID,
		AssessmentDate: a.Date.Format(time.DateOnly),
		Period:         string(a.Period),
		Comments:       a.Comments,
		CoachNotes:     a.CoachNotes,
		Finalized:      a.Finalized,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		Scores:         scores,
	}
}

func toAssessments(list []model.Assessment) []assessmentResponse {
	out := make([]assessmentResponse, len(list))
	for i := range list {
		out[i] = toAssessment(list[i])
	}
	return out
}

// categoryMap renders averages with string keys. Unassessed categories stay
// absent.
func categoryMap(avg analytics.CategoryAverages) map[string]float64 {
	out := make(map[string]float64, len(avg))
	for c, v := range avg {
		out[string(c)] = v
	}
	return out
}

type progressResponse struct {
	PlayerID             string             `json:"playerId"`
	TotalAssessments     int                `json:"totalAssessments"`
	AverageScore         float64            `json:"averageScore"`
	CategoryAverages     map[string]float64 `json:"categoryAverages"`
	ProgressTrend        string             `json:"progressTrend"`
	LatestAssessmentDate *string            `json:"latestAssessmentDate"`
}

func toProgress(p analytics.Progress) progressResponse {
	out := progressResponse{
		PlayerID:         p.PlayerID,
		TotalAssessments: p.TotalAssessments,
		AverageScore:     p.AverageScore,
		CategoryAverages: categoryMap(p.CategoryAverages),
		ProgressTrend:    string(p.Trend),
	}
	if p.LatestAssessmentDate != nil {
		d := p.LatestAssessmentDate.Format(time.DateOnly)
		out.LatestAssessmentDate = &d
	}
	return out
}

type summaryResponse struct {
	TotalAssessments       int                `json:"totalAssessments"`
	CompletedAssessments   int                `json:"completedAssessments"`
	PendingAssessments     int                `json:"pendingAssessments"`
	AverageScoreByCategory map[string]float64 `json:"averageScoreByCategory"`
}

func toSummary(s analytics.Summary) summaryResponse {
	return summaryResponse{
		TotalAssessments:       s.TotalAssessments,
		CompletedAssessments:   s.CompletedAssessments,
		PendingAssessments:     s.PendingAssessments,
		AverageScoreByCategory: categoryMap(s.AverageScoreByCategory),
	}
}

type statsResponse struct {
	AssessmentID     string             `json:"assessmentId"`
	OverallAverage   float64            `json:"overallAverage"`
	CategoryAverages map[string]float64 `json:"categoryAverages"`
	Complete         bool               `json:"complete"`
	Partial          bool               `json:"partial"`
	RequiredSkills   int                `json:"requiredSkills"`
	AssessedSkills   int                `json:"assessedSkills"`
	MissingSkills    []string           `json:"missingSkills"`
}

func toStats(s analytics.AssessmentStats) statsResponse {
	return statsResponse{
		AssessmentID:     s.AssessmentID,
		OverallAverage:   s.OverallAverage,
		CategoryAverages: categoryMap(s.CategoryAverages),
		Complete:         s.Complete,
		Partial:          s.Partial,
		RequiredSkills:   s.Required,
		AssessedSkills:   s.Assessed,
		MissingSkills:    s.Missing,
	}
}
