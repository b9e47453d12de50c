package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const startDateLayout = "20060102"

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Parse parses the stored form of a rule, e.g.
// "KIND=monthly;MODE=nth_weekday;WEEK=4;DAY=FR;TIME=18:30;START=20250101".
// Parse only checks syntax; a stored rule that is missing a field its kind
// needs still parses, and NextDue reports it as unschedulable.
func Parse(s string) (Rule, error) {
	if s == "" {
		return Rule{}, fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}

	var r Rule
	for _, part := range strings.Split(s, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, fmt.Errorf("%w: invalid rule part %q", ErrInvalidRule, part)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "KIND":
			r.Kind = Kind(val)

		case "MODE":
			r.Mode = MonthlyMode(val)

		case "DAY":
			wd, ok := dayNames[strings.TrimSpace(val)]
			if !ok {
				return Rule{}, fmt.Errorf("%w: unknown day %q", ErrInvalidRule, val)
			}
			r.DayOfWeek = &wd

		case "WEEK":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: invalid week %q", ErrInvalidRule, val)
			}
			r.Week = n

		case "MONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: invalid month day %q", ErrInvalidRule, val)
			}
			r.DayOfMonth = n

		case "TIME":
			r.Time = val

		case "START":
			t, err := time.Parse(startDateLayout, val)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: invalid start %q", ErrInvalidRule, val)
			}
			r.StartDate = &t

		default:
			return Rule{}, fmt.Errorf("%w: unsupported rule key %q", ErrInvalidRule, key)
		}
	}

	if r.Kind == "" {
		return Rule{}, fmt.Errorf("%w: KIND is required", ErrInvalidRule)
	}
	return r, nil
}

// String serializes the rule to the form Parse accepts.
func (r Rule) String() string {
	parts := []string{"KIND=" + string(r.Kind)}

	if r.Mode != ModeAuto {
		parts = append(parts, "MODE="+string(r.Mode))
	}
	if r.DayOfWeek != nil {
		parts = append(parts, "DAY="+dayAbbrev[*r.DayOfWeek])
	}
	if r.Week > 0 {
		parts = append(parts, fmt.Sprintf("WEEK=%d", r.Week))
	}
	if r.DayOfMonth > 0 {
		parts = append(parts, fmt.Sprintf("MONTHDAY=%d", r.DayOfMonth))
	}
	if r.Time != "" {
		parts = append(parts, "TIME="+r.Time)
	}
	if r.StartDate != nil && !r.StartDate.IsZero() {
		parts = append(parts, "START="+r.StartDate.Format(startDateLayout))
	}

	return strings.Join(parts, ";")
}
