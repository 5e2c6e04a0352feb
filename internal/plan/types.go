// Package plan defines the learning path request and result types shared by
// the generation pipeline, the fallback planner and the transport adapters.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MaxDurationMonths bounds the plan length a request may ask for.
const MaxDurationMonths = 120

// Request is the input to learning path generation.
type Request struct {
	Field          string   `json:"field"`
	Level          string   `json:"level"`
	DurationMonths int      `json:"duration"`
	DailyHours     float64  `json:"daily_hours"`
	Interests      []string `json:"interests"`
}

// Validate reports every invalid field. The pipeline tolerates invalid
// requests; adapters call Validate to reject them up front.
func (r Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Field) == "" {
		errs = append(errs, errors.New("field is required"))
	}
	if strings.TrimSpace(r.Level) == "" {
		errs = append(errs, errors.New("level is required"))
	}
	if r.DurationMonths <= 0 {
		errs = append(errs, fmt.Errorf("duration must be a positive number of months, got %d", r.DurationMonths))
	} else if r.DurationMonths > MaxDurationMonths {
		errs = append(errs, fmt.Errorf("duration must be at most %d months, got %d", MaxDurationMonths, r.DurationMonths))
	}
	if r.DailyHours <= 0 {
		errs = append(errs, fmt.Errorf("daily_hours must be positive, got %v", r.DailyHours))
	}
	return errors.Join(errs...)
}

// Days returns the number of daily plan entries the request calls for, one
// per day with a month counted as 30 days.
func (r Request) Days() int {
	if r.DurationMonths <= 0 {
		return 0
	}
	return r.DurationMonths * 30
}

// Course is a course summary included in a plan.
type Course struct {
	Title         string   `json:"title"`
	Level         string   `json:"level"`
	DurationWeeks int      `json:"duration"`
	Topics        []string `json:"topics"`
}

// Phase is a named block of the plan. DurationDays is in days.
type Phase struct {
	Name         string   `json:"name"`
	DurationDays int      `json:"duration"`
	Tasks        []string `json:"tasks"`
}

// Day is one entry of the daily plan.
type Day struct {
	Date      string   `json:"date"`
	DayOfWeek string   `json:"day_of_week"`
	Tasks     []string `json:"tasks"`
}

// Result is a generated learning path. Every list field is always present
// in its JSON form, even when empty. FallbackReason is set iff IsFallback.
type Result struct {
	Field          string   `json:"field"`
	Level          string   `json:"level"`
	DurationMonths int      `json:"duration"`
	DailyHours     float64  `json:"daily_hours"`
	Interests      []string `json:"interests"`
	Courses        []Course `json:"courses"`
	Phases         []Phase  `json:"phases"`
	DailyPlan      []Day    `json:"daily_plan"`
	Overview       string   `json:"overview"`
	Projects       []string `json:"projects"`
	Resources      []string `json:"resources"`
	Tips           []string `json:"tips"`
	IsFallback     bool     `json:"is_fallback"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}

// EchoRequest overwrites the request-derived fields with req's values.
func (r *Result) EchoRequest(req Request) {
	r.Field = req.Field
	r.Level = req.Level
	r.DurationMonths = req.DurationMonths
	r.DailyHours = req.DailyHours
	r.Interests = append([]string(nil), req.Interests...)
}

// FillEmpty replaces nil lists with empty ones so they encode as [].
func (r *Result) FillEmpty() {
	if r.Interests == nil {
		r.Interests = []string{}
	}
	if r.Courses == nil {
		r.Courses = []Course{}
	}
	if r.Phases == nil {
		r.Phases = []Phase{}
	}
	if r.DailyPlan == nil {
		r.DailyPlan = []Day{}
	}
	if r.Projects == nil {
		r.Projects = []string{}
	}
	if r.Resources == nil {
		r.Resources = []string{}
	}
	if r.Tips == nil {
		r.Tips = []string{}
	}
	for i := range r.Courses {
		if r.Courses[i].Topics == nil {
			r.Courses[i].Topics = []string{}
		}
	}
	for i := range r.Phases {
		if r.Phases[i].Tasks == nil {
			r.Phases[i].Tasks = []string{}
		}
	}
	for i := range r.DailyPlan {
		if r.DailyPlan[i].Tasks == nil {
			r.DailyPlan[i].Tasks = []string{}
		}
	}
}

// MarshalJSON encodes the result with all list fields present.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	cp := r
	cp.Courses = slices.Clone(r.Courses)
	cp.Phases = slices.Clone(r.Phases)
	cp.DailyPlan = slices.Clone(r.DailyPlan)
	cp.FillEmpty()
	return json.Marshal(alias(cp))
}

// Envelope is the wire form returned to clients: {"learning_path": {...}}.
type Envelope struct {
	LearningPath Result `json:"learning_path"`
}
