package task

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the state of an analysis task.
type Status string

const (
	StatusPending Status = "pending"
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Task is one submitted unit of analysis work.
type Task struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Params    Params    `json:"params"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// validTransitions defines allowed state transitions.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusStarted},
	StatusStarted: {StatusSuccess, StatusFailure},
}

// Transition returns nil if from→to is a legal transition.
func Transition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q → %q", from, to)
}

// Params is the submission payload. Immutable once enqueued.
type Params struct {
	Country          string `json:"country"`
	City             string `json:"city"`
	JobRole          string `json:"job_role"`
	IncludeSkills    bool   `json:"include_skills"`
	IncludeSalaries  bool   `json:"include_salaries"`
	IncludeCompanies bool   `json:"include_companies"`
	IncludeTrends    bool   `json:"include_trends"`
}

// Validate checks that the required submission fields are present.
func (p Params) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(p.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(p.JobRole) == "" {
		missing = append(missing, "job_role")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
