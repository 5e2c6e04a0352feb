package plan

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRequestValidate(t *testing.T) {
	valid := Request{Field: "Python", Level: "Beginner", DurationMonths: 3, DailyHours: 2}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := Request{Field: " ", DurationMonths: 0, DailyHours: -1}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"field", "level", "duration", "daily_hours"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestRequestValidate_DurationBounds(t *testing.T) {
	tests := []struct {
		months  int
		wantErr bool
	}{
		{1, false},
		{MaxDurationMonths, false},
		{MaxDurationMonths + 1, true},
		{100000, true},
	}
	for _, tt := range tests {
		req := Request{Field: "Go", Level: "Beginner", DurationMonths: tt.months, DailyHours: 1}
		err := req.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate() with %d months: err = %v, wantErr %v", tt.months, err, tt.wantErr)
		}
		if err != nil && !strings.Contains(err.Error(), "at most 120 months") {
			t.Errorf("error = %q, want it to name the limit", err)
		}
	}
}

func TestRequestDays(t *testing.T) {
	if got := (Request{DurationMonths: 3}).Days(); got != 90 {
		t.Errorf("Days() = %d, want 90", got)
	}
	if got := (Request{DurationMonths: -2}).Days(); got != 0 {
		t.Errorf("Days() = %d, want 0", got)
	}
}

func TestResultMarshalAlwaysHasLists(t *testing.T) {
	data, err := json.Marshal(Envelope{LearningPath: Result{Field: "Go"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	lp := decoded["learning_path"]
	for _, key := range []string{"interests", "courses", "phases", "daily_plan", "projects", "resources", "tips"} {
		v, ok := lp[key]
		if !ok {
			t.Errorf("key %q missing", key)
			continue
		}
		if arr, ok := v.([]any); !ok || len(arr) != 0 {
			t.Errorf("%s = %v, want []", key, v)
		}
	}
	if _, ok := lp["overview"]; !ok {
		t.Error("overview missing")
	}
	if _, ok := lp["fallback_reason"]; ok {
		t.Error("fallback_reason present on non-fallback result")
	}
}

func TestEchoRequestCopiesInterests(t *testing.T) {
	req := Request{Field: "Web", Level: "Advanced", DurationMonths: 2, DailyHours: 1.5, Interests: []string{"a"}}
	var r Result
	r.EchoRequest(req)
	req.Interests[0] = "changed"
	if r.Interests[0] != "a" {
		t.Errorf("Interests shares backing array with request")
	}
	if r.Field != "Web" || r.DurationMonths != 2 || r.DailyHours != 1.5 {
		t.Errorf("EchoRequest = %+v", r)
	}
}

func TestMondayIndex(t *testing.T) {
	// 2024-01-01 was a Monday.
	mon := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := MondayIndex(DayAt(mon, i)); got != i {
			t.Errorf("MondayIndex(day %d) = %d, want %d", i, got, i)
		}
	}
}

func TestCalendarStamp(t *testing.T) {
	start := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC) // Tuesday
	days := make([]Day, 4)
	days[0].Date = "1999-01-01"

	Calendar{Start: start, Locale: LocaleEN}.Stamp(days)

	wantDates := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	wantNames := []string{"Tuesday", "Wednesday", "Thursday", "Friday"}
	for i := range days {
		if days[i].Date != wantDates[i] {
			t.Errorf("days[%d].Date = %q, want %q", i, days[i].Date, wantDates[i])
		}
		if days[i].DayOfWeek != wantNames[i] {
			t.Errorf("days[%d].DayOfWeek = %q, want %q", i, days[i].DayOfWeek, wantNames[i])
		}
	}
}

func TestLocale(t *testing.T) {
	vi, err := ParseLocale("VI")
	if err != nil {
		t.Fatalf("ParseLocale: %v", err)
	}
	if got := vi.WeekdayName(Sunday); got != "Chủ Nhật" {
		t.Errorf("vi Sunday = %q", got)
	}
	if got := vi.Language(); got != "Vietnamese" {
		t.Errorf("vi Language = %q", got)
	}
	if _, err := ParseLocale("fr"); err == nil {
		t.Error("expected error for unsupported locale")
	}
	if got := Locale("xx").WeekdayName(0); got != "Monday" {
		t.Errorf("unknown locale weekday = %q, want English fallback", got)
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{2.0 / 3.0, "0.67"},
		{1.5, "1.5"},
		{0.125, "0.13"},
	}
	for _, tt := range tests {
		if got := FormatHours(tt.in); got != tt.want {
			t.Errorf("FormatHours(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
