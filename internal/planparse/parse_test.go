package planparse

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/learnpath/internal/plan"
)

// 2025-03-07 is a Friday.
var testNow = time.Date(2025, 3, 7, 9, 30, 0, 0, time.UTC)

func testRequest() plan.Request {
	return plan.Request{
		Field:          "Python",
		Level:          "Beginner",
		DurationMonths: 1,
		DailyHours:     2,
		Interests:      []string{"web"},
	}
}

const wellFormed = "Here is your plan:\n```json\n" + `{
  "learning_path": {
    "field": "Something else",
    "level": "Expert",
    "duration": 12,
    "daily_hours": 9,
    "interests": ["games"],
    "courses": [{"title": "Python for Beginners", "level": "Beginner", "duration": 6, "topics": ["Syntax", "Functions"]}],
    "phases": [
      {"name": "Foundation", "duration": 10, "tasks": ["Learn syntax"]},
      {"name": "Practice", "duration": 10, "tasks": ["Build scripts"]},
      {"name": "Advanced", "duration": 10, "tasks": ["Ship a project"]}
    ],
    "daily_plan": [
      {"date": "1999-01-01", "day_of_week": "Someday", "tasks": ["Install Python (1 hours)", "Hello world (1 hours)"]},
      {"date": "1999-01-01", "day_of_week": "Someday", "tasks": ["Variables (2 hours)"]},
      {"date": "1999-01-01", "day_of_week": "Someday", "tasks": ["Review (2 hours)"]}
    ],
    "overview": "A gentle start.",
    "projects": ["CLI todo app"],
    "resources": ["docs.python.org"],
    "tips": ["Practice daily"]
  }
}` + "\n```\nGood luck!"

func TestParse_FencedRoundTrip(t *testing.T) {
	req := testRequest()
	res, err := Parse(wellFormed, req, testNow, plan.LocaleEN)
	require.NoError(t, err)

	assert.False(t, res.IsFallback)
	assert.Empty(t, res.FallbackReason)

	assert.Equal(t, "Python", res.Field)
	assert.Equal(t, "Beginner", res.Level)
	assert.Equal(t, 1, res.DurationMonths)
	assert.Equal(t, 2.0, res.DailyHours)
	assert.Equal(t, []string{"web"}, res.Interests)

	require.Len(t, res.Phases, 3)
	assert.Equal(t, "Practice", res.Phases[1].Name)
	assert.Equal(t, 10, res.Phases[1].DurationDays)

	require.Len(t, res.Courses, 1)
	assert.Equal(t, plan.Course{Title: "Python for Beginners", Level: "Beginner", DurationWeeks: 6, Topics: []string{"Syntax", "Functions"}}, res.Courses[0])

	require.Len(t, res.DailyPlan, 3)
	assert.Equal(t, "2025-03-07", res.DailyPlan[0].Date)
	assert.Equal(t, "Friday", res.DailyPlan[0].DayOfWeek)
	assert.Equal(t, "2025-03-08", res.DailyPlan[1].Date)
	assert.Equal(t, "Saturday", res.DailyPlan[1].DayOfWeek)
	assert.Equal(t, "2025-03-09", res.DailyPlan[2].Date)
	assert.Equal(t, "Sunday", res.DailyPlan[2].DayOfWeek)
	assert.Equal(t, []string{"Install Python (1 hours)", "Hello world (1 hours)"}, res.DailyPlan[0].Tasks)

	assert.Equal(t, "A gentle start.", res.Overview)
	assert.Equal(t, []string{"CLI todo app"}, res.Projects)
}

func TestParse_EchoFieldsNotAliased(t *testing.T) {
	req := testRequest()
	res, err := Parse(wellFormed, req, testNow, plan.LocaleEN)
	require.NoError(t, err)

	res.Interests[0] = "changed"
	assert.Equal(t, "web", req.Interests[0])
}

func TestParse_UnfencedWithProse(t *testing.T) {
	raw := `Sure! {"learning_path": {"overview": "x", "phases": [{"name": "A", "duration": 5, "tasks": ["t"]}]}} Hope this helps.`
	res, err := Parse(raw, testRequest(), testNow, plan.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, "x", res.Overview)
	require.Len(t, res.Phases, 1)
	assert.NotNil(t, res.Courses)
	assert.NotNil(t, res.DailyPlan)
	assert.NotNil(t, res.Tips)
}

func TestParse_FenceLanguageTagAnyCase(t *testing.T) {
	for _, tag := range []string{"JSON", "Json", ""} {
		raw := "```" + tag + "\n" + `{"learning_path": {"overview": "fenced", "tips": ["a"]}}` + "\n```"
		res, err := Parse(raw, testRequest(), testNow, plan.LocaleEN)
		require.NoError(t, err, "tag %q", tag)
		assert.Equal(t, "fenced", res.Overview, "tag %q", tag)
	}
}

func TestParse_WrapsBareObject(t *testing.T) {
	raw := `{"overview": "bare", "daily_plan": [{"tasks": ["a"]}, {"tasks": ["b"]}]}`
	res, err := Parse(raw, testRequest(), testNow, plan.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, "bare", res.Overview)
	require.Len(t, res.DailyPlan, 2)
	assert.Equal(t, "2025-03-08", res.DailyPlan[1].Date)
}

func TestParse_NewlinesInsideStrings(t *testing.T) {
	raw := "{\"learning_path\": {\"overview\": \"line one\nline two\r\n\", \"tips\": [\"a\"]}}"
	res, err := Parse(raw, testRequest(), testNow, plan.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, "line one line two", res.Overview)
}

func TestParse_Repairs(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		overview string
		tips     []string
	}{
		{
			name:     "trailing commas",
			raw:      `{"learning_path": {"overview": "ok", "tips": ["a", "b",],},}`,
			overview: "ok",
			tips:     []string{"a", "b"},
		},
		{
			name:     "single quotes",
			raw:      `{'learning_path': {'overview': 'quoted', 'tips': ['x']}}`,
			overview: "quoted",
			tips:     []string{"x"},
		},
		{
			name:     "bare keys",
			raw:      `{learning_path: {overview: "bare keys", tips: ["y"]}}`,
			overview: "bare keys",
			tips:     []string{"y"},
		},
		{
			name: "comments from the schema example",
			raw: "```json\n{\n  \"learning_path\": {\n    \"overview\": \"see https://go.dev\", // summary\n" +
				"    /* block */ \"tips\": [\"don't stop\"]\n  }\n}\n```",
			overview: "see https://go.dev",
			tips:     []string{"don't stop"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.raw, testRequest(), testNow, plan.LocaleEN)
			require.NoError(t, err)
			assert.False(t, res.IsFallback)
			assert.Equal(t, tt.overview, res.Overview)
			assert.Equal(t, tt.tips, res.Tips)
		})
	}
}

func TestParse_Unrecoverable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no braces", "I cannot help with that."},
		{"garbage", "{this is :: not json at all ]"},
		{"array", "```json\n[1, 2, 3]\n```"},
		{"unrelated object", `{"error": "quota"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.raw, testRequest(), testNow, plan.LocaleEN)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnrecoverable))
			var uerr *UnrecoverableError
			assert.True(t, errors.As(err, &uerr))

			// Still structurally valid and echoing the request.
			assert.Equal(t, "Python", res.Field)
			assert.NotNil(t, res.Phases)
			assert.NotNil(t, res.DailyPlan)
			assert.Empty(t, res.Overview)
		})
	}
}

func TestParse_LenientElements(t *testing.T) {
	raw := `{"learning_path": {
		"courses": ["Just a title", {"title": "Typed", "duration": "8 weeks", "topics": "single"}],
		"phases": [{"name": "P", "duration": "30", "tasks": [{"task": "object task"}, 42]}],
		"daily_plan": ["loose task", {"tasks": "one"}],
		"overview": 7,
		"projects": "one project",
		"resources": [{"name": "Go Tour", "url": "https://go.dev/tour"}],
		"tips": null
	}}`
	res, err := Parse(raw, testRequest(), testNow, plan.LocaleVI)
	require.NoError(t, err)

	require.Len(t, res.Courses, 2)
	assert.Equal(t, "Just a title", res.Courses[0].Title)
	assert.Equal(t, 8, res.Courses[1].DurationWeeks)
	assert.Equal(t, []string{"single"}, res.Courses[1].Topics)

	require.Len(t, res.Phases, 1)
	assert.Equal(t, 30, res.Phases[0].DurationDays)
	assert.Equal(t, []string{"object task", "42"}, res.Phases[0].Tasks)

	require.Len(t, res.DailyPlan, 2)
	assert.Equal(t, []string{"loose task"}, res.DailyPlan[0].Tasks)
	assert.Equal(t, []string{"one"}, res.DailyPlan[1].Tasks)
	assert.Equal(t, "Thứ Sáu", res.DailyPlan[0].DayOfWeek)

	assert.Equal(t, "7", res.Overview)
	assert.Equal(t, []string{"one project"}, res.Projects)
	assert.Equal(t, []string{"Go Tour"}, res.Resources)
	assert.Equal(t, []string{}, res.Tips)
}

func TestParse_JSONAlwaysHasAllKeys(t *testing.T) {
	res, _ := Parse("nothing here", testRequest(), testNow, plan.LocaleEN)
	b, err := json.Marshal(res)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"field", "level", "duration", "daily_hours", "interests", "courses", "phases", "daily_plan", "overview", "projects", "resources", "tips", "is_fallback"} {
		assert.Contains(t, m, k)
	}
	assert.NotContains(t, m, "fallback_reason")
}
