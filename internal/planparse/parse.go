// Package planparse turns raw model output into a normalized learning path.
package planparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/learnpath/internal/plan"
)

// ErrUnrecoverable is wrapped by every error Parse returns.
var ErrUnrecoverable = errors.New("no usable JSON in generation response")

// UnrecoverableError reports why a response could not be turned into a plan.
type UnrecoverableError struct {
	Reason string
	Err    error
}

func (e *UnrecoverableError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *UnrecoverableError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnrecoverable, e.Err}
	}
	return []error{ErrUnrecoverable}
}

// wrapperKeys mark a bare learning path object that lacks the
// "learning_path" wrapper.
var wrapperKeys = []string{"courses", "phases", "daily_plan", "overview"}

// Parse extracts, repairs and normalizes a model response for req. Dates in
// the daily plan are recomputed from now and request fields are copied from
// req regardless of what the model wrote.
//
// The returned Result is always structurally valid. A non-nil error (which
// wraps ErrUnrecoverable) means no JSON object could be recovered and the
// Result carries only the request fields.
func Parse(raw string, req plan.Request, now time.Time, loc plan.Locale) (plan.Result, error) {
	res, err := parse(raw, now, loc)
	res.EchoRequest(req)
	res.FillEmpty()
	res.IsFallback = false
	res.FallbackReason = ""
	return res, err
}

func parse(raw string, now time.Time, loc plan.Locale) (plan.Result, error) {
	candidate, ok := extract(raw)
	if !ok {
		return plan.Result{}, &UnrecoverableError{Reason: "no JSON object found"}
	}

	doc, err := decode(candidate)
	if err != nil {
		return plan.Result{}, err
	}

	lp, ok := doc["learning_path"].(map[string]any)
	if !ok {
		if !hasAny(doc, wrapperKeys) {
			return plan.Result{}, &UnrecoverableError{Reason: "JSON object has no learning path fields"}
		}
		lp = doc
	}

	if err := validate(lp); err != nil {
		slog.Warn("planparse: response does not match schema, normalizing", "error", err)
	}

	res := normalize(lp)
	plan.Calendar{Start: now, Locale: loc}.Stamp(res.DailyPlan)
	return res, nil
}

// decode tries the flattened candidate strictly, then each repair in turn.
func decode(candidate string) (map[string]any, error) {
	var firstErr error
	for i, src := range append([]string{flatten(candidate)}, repairs(candidate)...) {
		var v any
		err := json.Unmarshal([]byte(src), &v)
		if err == nil {
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, &UnrecoverableError{Reason: fmt.Sprintf("top-level JSON value is %s, not an object", kind(v))}
			}
			if i > 0 {
				slog.Debug("planparse: response needed repair", "pass", i)
			}
			return obj, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, &UnrecoverableError{Reason: "invalid JSON after repair", Err: firstErr}
}

func hasAny(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func kind(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// normalize builds a Result from a decoded learning path object, coercing
// elements of the wrong shape instead of rejecting them.
func normalize(lp map[string]any) plan.Result {
	var res plan.Result
	res.Overview = text(lp["overview"])
	res.Projects = textList(lp["projects"])
	res.Resources = textList(lp["resources"])
	res.Tips = textList(lp["tips"])

	for _, item := range list(lp["courses"]) {
		obj, ok := item.(map[string]any)
		if !ok {
			if s := text(item); s != "" {
				res.Courses = append(res.Courses, plan.Course{Title: s})
			}
			continue
		}
		res.Courses = append(res.Courses, plan.Course{
			Title:         text(obj["title"]),
			Level:         text(obj["level"]),
			DurationWeeks: integer(obj["duration"]),
			Topics:        textList(obj["topics"]),
		})
	}

	for _, item := range list(lp["phases"]) {
		obj, ok := item.(map[string]any)
		if !ok {
			if s := text(item); s != "" {
				res.Phases = append(res.Phases, plan.Phase{Name: s})
			}
			continue
		}
		res.Phases = append(res.Phases, plan.Phase{
			Name:         text(obj["name"]),
			DurationDays: integer(obj["duration"]),
			Tasks:        textList(obj["tasks"]),
		})
	}

	for _, item := range list(lp["daily_plan"]) {
		var day plan.Day
		if obj, ok := item.(map[string]any); ok {
			day.Tasks = textList(obj["tasks"])
		} else {
			day.Tasks = textList(item)
		}
		res.DailyPlan = append(res.DailyPlan, day)
	}
	return res
}

// list returns v as a slice. A single non-list value becomes a one-element
// list; null becomes nil.
func list(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}
	return []any{v}
}

// textList renders every element of v as text, dropping empty ones.
func textList(v any) []string {
	items := list(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := text(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// text renders a JSON value as a display string.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, k := range []string{"title", "name", "task", "description", "text"} {
			if s, ok := t[k].(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
	case []any:
		return strings.Join(textList(t), ", ")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// integer reads a number or numeric string, returning 0 when there is none.
func integer(v any) int {
	switch t := v.(type) {
	case float64:
		return int(math.Round(t))
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(math.Round(f))
		}
		// "8 weeks", "30 days"
		if fields := strings.Fields(s); len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				return n
			}
		}
	}
	return 0
}
