// Package dupcheck drives a running pitchside instance with concurrent
// creates for one player and month and verifies that exactly one
// assessment survives.
package dupcheck

import "time"

// Config holds configuration for a check run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Actor    string        // X-Actor-ID sent with every request
	PlayerID string        // Player all attempts target
	Date     string        // Assessment date, YYYY-MM-DD
	Attempts int           // Number of concurrent create attempts
	Workers  int           // Number of concurrent workers
	Timeout  time.Duration // HTTP request timeout
	Verbose  bool          // Log every non-created response
}

// Stats holds run statistics.
type Stats struct {
	Submitted int
	Created   int
	Conflicts int
	Failed    int
	InMonth   int // assessments found for the target month afterwards
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

type rating struct {
	SkillID string `json:"skillId"`
	Score   int    `json:"score"`
}

type createRequest struct {
	PlayerID       string   `json:"playerId"`
	AssessmentDate string   `json:"assessmentDate"`
	Comments       string   `json:"comments,omitempty"`
	Scores         []rating `json:"scores"`
}

type assessment struct {
	ID             string `json:"id"`
	PlayerID       string `json:"playerId"`
	AssessmentDate string `json:"assessmentDate"`
}
