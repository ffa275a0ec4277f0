package validation

import (
	"strings"
	"time"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func OneOf(field, value string, choices []string, v Violations) {
	for _, c := range choices {
		if c == value {
			return
		}
	}
	v[field] = "unknown_choice"
}

func NonNegativeInt(field string, val int, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func DateOrder(field string, start, end time.Time, v Violations) {
	if end.Before(start) {
		v[field] = "end_before_start"
	}
}
