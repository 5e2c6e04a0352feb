// Package fallback builds a deterministic template learning path when the
// generation service cannot be used.
package fallback

import (
	"fmt"
	"time"

	"github.com/kalambet/learnpath/internal/plan"
	"github.com/kalambet/learnpath/internal/retrieval"
)

const (
	maxCourses       = 3
	maxCourseTopics  = 5
	defaultWeeks     = 4
	daysPerPhaseUnit = 10
)

// Synthesizer builds fallback plans. The zero value uses English weekday
// names.
type Synthesizer struct {
	Locale plan.Locale
}

// New returns a Synthesizer that names weekdays in locale.
func New(locale plan.Locale) *Synthesizer {
	return &Synthesizer{Locale: locale}
}

// Synthesize builds a complete plan from the request and retrieved courses,
// with daily entries starting at now. The result is marked as a fallback;
// the caller sets the reason.
func (s *Synthesizer) Synthesize(req plan.Request, courses []retrieval.RetrievedCourse, now time.Time) plan.Result {
	f := req.Field
	res := plan.Result{
		Overview: fmt.Sprintf("%s learning path for %s level over %d months", f, req.Level, req.DurationMonths),
		Phases: []plan.Phase{
			{Name: f + " Foundation", DurationDays: req.DurationMonths * daysPerPhaseUnit, Tasks: []string{
				"Learn the basics of " + f, "Get familiar with " + f + " tools",
			}},
			{Name: f + " Practice", DurationDays: req.DurationMonths * daysPerPhaseUnit, Tasks: []string{
				"Practice " + f + " skills", "Build a small " + f + " project",
			}},
			{Name: f + " Advanced", DurationDays: req.DurationMonths * daysPerPhaseUnit, Tasks: []string{
				"Study advanced " + f + " techniques", "Complete a capstone project",
			}},
		},
		Projects:  []string{"A basic " + f + " project", "An advanced " + f + " project"},
		Resources: []string{"Books on " + f, "Online courses on " + f, f + " reference websites"},
		Tips: []string{
			"Study consistently every day",
			"Practice is the most effective way to learn",
			"Join a community to exchange experience",
			"Build real projects to apply what you learn",
		},
		Courses:    planCourses(courses),
		IsFallback: true,
	}
	res.EchoRequest(req)
	res.DailyPlan = s.dailyPlan(req, now)
	res.FillEmpty()
	return res
}

func planCourses(courses []retrieval.RetrievedCourse) []plan.Course {
	if len(courses) > maxCourses {
		courses = courses[:maxCourses]
	}
	out := make([]plan.Course, 0, len(courses))
	for _, c := range courses {
		weeks := c.DurationWeeks
		if weeks <= 0 {
			weeks = defaultWeeks
		}
		topics := c.Topics
		if len(topics) > maxCourseTopics {
			topics = topics[:maxCourseTopics]
		}
		out = append(out, plan.Course{
			Title:         c.Title,
			Level:         c.Level,
			DurationWeeks: weeks,
			Topics:        append([]string(nil), topics...),
		})
	}
	return out
}

// phaseOf maps a day index to phase 1..3. Every day past the third month is
// phase 3.
func phaseOf(day int) int {
	return min(day/30+1, 3)
}

func (s *Synthesizer) dailyPlan(req plan.Request, now time.Time) []plan.Day {
	topics := Topics(req.Field, req.Interests)
	tasks := LevelTasks(req.Level, req.Field)
	topic := func(i int) string { return topics[i%len(topics)] }
	task := func(i int) string { return tasks[i%len(tasks)] }

	n := req.Days()
	days := make([]plan.Day, n)
	for day := range n {
		date := plan.DayAt(now, day)
		var items []string
		if plan.MondayIndex(date) == plan.Sunday {
			switch phaseOf(day) {
			case 1:
				items = []string{
					"Review the basics of " + topic(day),
					"Practice exercises on " + topic(day+1),
				}
			case 2:
				items = []string{
					"Review and consolidate last week's material",
					"Work on a small project about " + topic(day+2),
					"Plan the coming week",
				}
			default:
				items = []string{
					"Evaluate project progress",
					"Advanced practice on " + topic(day+3),
					"Prepare a project presentation",
				}
			}
		} else {
			switch phaseOf(day) {
			case 1:
				items = []string{
					"Study the theory of " + topic(day),
					"Practice " + task(day),
				}
			case 2:
				items = []string{
					"Learn techniques for " + topic(day+1),
					"Apply " + task(day+1),
					"Study a real-world case on " + topic(day+2),
				}
			default:
				items = []string{
					"Advanced study of " + topic(day+3),
					"Develop a project using " + topic(day+4),
					"Solve complex problems in " + topic(day+5),
				}
			}
		}

		hours := plan.FormatHours(req.DailyHours / float64(len(items)))
		for i := range items {
			items[i] = fmt.Sprintf("%s (%s hours)", items[i], hours)
		}
		days[day] = plan.Day{Tasks: items}
	}
	plan.Calendar{Start: now, Locale: s.Locale}.Stamp(days)
	return days
}
