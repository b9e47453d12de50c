package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRule is wrapped by every validation and parse failure.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Default time of day for rules without a usable Time.
const (
	DefaultHour   = 9
	DefaultMinute = 0
)

type Kind string

const (
	Daily        Kind = "daily"
	Weekdays     Kind = "weekdays"
	Weekends     Kind = "weekends"
	Weekly       Kind = "weekly"
	Biweekly     Kind = "biweekly"
	Monthly      Kind = "monthly"
	Every3Months Kind = "every3months"
	Every6Months Kind = "every6months"
	Yearly       Kind = "yearly"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{Daily, Weekdays, Weekends, Weekly, Biweekly, Monthly, Every3Months, Every6Months, Yearly}

// MonthBased reports whether the kind places its due date inside a month
// rather than on a weekday.
func (k Kind) MonthBased() bool {
	switch k {
	case Monthly, Every3Months, Every6Months, Yearly:
		return true
	}
	return false
}

// periodMonths is the month stride of a month-based kind.
func (k Kind) periodMonths() int {
	switch k {
	case Every3Months:
		return 3
	case Every6Months:
		return 6
	case Yearly:
		return 12
	}
	return 1
}

// MonthlyMode selects how a month-based rule picks its day.
type MonthlyMode string

const (
	ModeAuto        MonthlyMode = ""
	ModeNthWeekday  MonthlyMode = "nth_weekday"
	ModeDayOfMonth  MonthlyMode = "day_of_month"
	ModeLastWeekday MonthlyMode = "last_weekday"
)

// Rule is the canonical recurrence of a task. Legacy frequency fields are
// converted with FromLegacy before they reach this type.
type Rule struct {
	Kind       Kind          `json:"kind" validate:"required,oneof=daily weekdays weekends weekly biweekly monthly every3months every6months yearly"`
	Mode       MonthlyMode   `json:"mode,omitempty" validate:"omitempty,oneof=nth_weekday day_of_month last_weekday"`
	DayOfWeek  *time.Weekday `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	Week       int           `json:"week,omitempty" validate:"omitempty,min=1,max=4"`
	DayOfMonth int           `json:"day_of_month,omitempty" validate:"omitempty,min=1,max=31"`
	Time       string        `json:"time,omitempty"`
	StartDate  *time.Time    `json:"start_date,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateRuleShape, Rule{})
	return v
}

// validateRuleShape enforces the fields each kind and mode depends on.
func validateRuleShape(sl validator.StructLevel) {
	r := sl.Current().Interface().(Rule)

	switch r.Kind {
	case Weekly, Biweekly:
		if r.DayOfWeek == nil {
			sl.ReportError(r.DayOfWeek, "day_of_week", "DayOfWeek", "required_for_kind", string(r.Kind))
		}
	case Monthly, Every3Months, Every6Months, Yearly:
		switch r.EffectiveMode() {
		case ModeNthWeekday:
			if r.Week == 0 {
				sl.ReportError(r.Week, "week", "Week", "required_for_mode", string(ModeNthWeekday))
			}
			if r.DayOfWeek == nil {
				sl.ReportError(r.DayOfWeek, "day_of_week", "DayOfWeek", "required_for_mode", string(ModeNthWeekday))
			}
		case ModeLastWeekday:
			if r.DayOfWeek == nil {
				sl.ReportError(r.DayOfWeek, "day_of_week", "DayOfWeek", "required_for_mode", string(ModeLastWeekday))
			}
		case ModeDayOfMonth:
			if r.DayOfMonth == 0 {
				sl.ReportError(r.DayOfMonth, "day_of_month", "DayOfMonth", "required_for_mode", string(ModeDayOfMonth))
			}
		}
	}
}

// Validate reports whether the rule can be scheduled. The error wraps
// ErrInvalidRule and names each failing field. Time is not checked here:
// a malformed time falls back to the default instead of failing the rule.
func (r Rule) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", e.Field(), e.Tag(), e.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRule, strings.Join(msgs, "; "))
}

// EffectiveMode returns the explicit mode, or infers one from the fields
// that are set. ModeAuto means the day comes from StartDate (or the 1st).
func (r Rule) EffectiveMode() MonthlyMode {
	if r.Mode != ModeAuto {
		return r.Mode
	}
	switch {
	case r.Week > 0:
		return ModeNthWeekday
	case r.DayOfMonth > 0:
		return ModeDayOfMonth
	}
	return ModeAuto
}

// Weekday returns the rule's target weekday and whether one is set.
func (r Rule) Weekday() (time.Weekday, bool) {
	if r.DayOfWeek == nil {
		return 0, false
	}
	return *r.DayOfWeek, true
}

// WeekdayPtr is a convenience for building rules in literals.
func WeekdayPtr(d time.Weekday) *time.Weekday {
	return &d
}
