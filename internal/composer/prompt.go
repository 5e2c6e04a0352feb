// Package composer builds the generation prompt for a learning path request
// from the request parameters and the retrieved reference courses.
package composer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/learnpath/internal/plan"
	"github.com/kalambet/learnpath/internal/retrieval"
)

// maxListedTopics is how many topics of each reference course are shown.
const maxListedTopics = 3

// Composer assembles generation prompts. The locale decides the language the
// model is asked to write in.
type Composer struct {
	Locale plan.Locale
}

// New creates a Composer for locale. An empty locale means English.
func New(locale plan.Locale) *Composer {
	if locale == "" {
		locale = plan.LocaleEN
	}
	return &Composer{Locale: locale}
}

// Compose renders the full prompt for req, listing courses as references.
func (c *Composer) Compose(req plan.Request, courses []retrieval.RetrievedCourse) string {
	lang := c.Locale.Language()
	hours := plan.FormatHours(req.DailyHours)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Request: Create a detailed learning path in %s for the field %q, %s level, over %d months, with about %s hours of study per day.\n",
		lang, req.Field, req.Level, req.DurationMonths, hours)
	if len(req.Interests) > 0 {
		fmt.Fprintf(&sb, "The learner is particularly interested in: %s.\n", strings.Join(req.Interests, ", "))
	} else {
		sb.WriteString("The learner has no particular interests beyond the field itself.\n")
	}

	sb.WriteString("\n[Reference Courses]\n")
	sb.WriteString(c.referenceList(req, courses))

	sb.WriteString("\n[Instructions]\n")
	instructions := []string{
		"Base the path **mainly** on the reference courses above when there are any. Prefer selecting and ordering those courses into the path.",
		"If the references are insufficient or the path needs continuity, you may lightly adapt courses (merge topics, rename them to fit) or add small lessons and projects, but stay close to the original courses.",
		"Split the path into clear phases, at least 3 of them.",
		fmt.Sprintf("Plan every single day of the whole duration in daily_plan, one entry per day, %d entries in total. Allocate time to tasks so each day adds up to %s hours.", req.Days(), hours),
		fmt.Sprintf("Write every task in %s. Tasks must be varied and fit the field, the level and the interests above.", lang),
		"Reserve Sundays for review, practice or a small project.",
		"Provide an overview, suggested projects, learning resources and study tips.",
	}
	for i, line := range instructions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}

	sb.WriteString("\n[Output Format]\n")
	sb.WriteString("Your response MUST be a single valid JSON object that follows the structure below exactly, with NO explanatory text outside the JSON object.\n\n")
	sb.WriteString(c.schemaExample(req))
	sb.WriteString("\nMake sure the returned JSON is valid and contains every field of the structure above.\n")
	return sb.String()
}

func (c *Composer) referenceList(req plan.Request, courses []retrieval.RetrievedCourse) string {
	if len(courses) == 0 {
		return fmt.Sprintf("No matching courses were found in the catalog for %s (%s).\n", req.Field, req.Level)
	}

	var sb strings.Builder
	sb.WriteString("The following catalog courses may be relevant to this request:\n")
	for _, rc := range courses {
		fmt.Fprintf(&sb, "- %s (Level: %s, Duration: %d weeks", orNA(rc.Title), orNA(rc.Level), rc.DurationWeeks)
		if len(rc.Topics) > 0 {
			topics := rc.Topics
			if len(topics) > maxListedTopics {
				topics = topics[:maxListedTopics]
			}
			fmt.Fprintf(&sb, ", Key topics: %s", strings.Join(topics, ", "))
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

func (c *Composer) schemaExample(req plan.Request) string {
	interests := req.Interests
	if interests == nil {
		interests = []string{}
	}
	interestsJSON, _ := json.Marshal(interests)
	fieldJSON, _ := json.Marshal(req.Field)
	levelJSON, _ := json.Marshal(req.Level)

	var sb strings.Builder
	sb.WriteString("```json\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"learning_path\": {\n")
	fmt.Fprintf(&sb, "    \"field\": %s,\n", fieldJSON)
	fmt.Fprintf(&sb, "    \"level\": %s,\n", levelJSON)
	fmt.Fprintf(&sb, "    \"duration\": %d,\n", req.DurationMonths)
	fmt.Fprintf(&sb, "    \"daily_hours\": %s,\n", strconv.FormatFloat(req.DailyHours, 'f', -1, 64))
	fmt.Fprintf(&sb, "    \"interests\": %s,\n", interestsJSON)
	sb.WriteString(`    "courses": [
      {
        "title": "Course title used or created for the path",
        "level": "Level",
        "duration": 8, // estimated length in weeks
        "topics": ["topic 1", "topic 2", "topic 3"]
      }
      // ... more courses
    ],
    "phases": [
      {
        "name": "Phase 1 name",
        "duration": 30, // planned number of days
        "tasks": ["task description 1", "task description 2"]
      }
      // ... more phases
    ],
    "daily_plan": [
      {
        "date": "YYYY-MM-DD",
        "day_of_week": "Weekday",
        "tasks": ["task 1 (X.X hours)", "task 2 (Y.Y hours)"] // concrete time allocation
      }
      // ... one entry for every day
    ],
    "overview": "A short overview of this learning path.",
    "projects": ["Suggested project 1", "Suggested project 2"],
    "resources": ["Useful resource link or name 1", "Resource 2"],
    "tips": ["Study tip 1", "Tip 2"]
  }
}
`)
	sb.WriteString("```\n")
	return sb.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
