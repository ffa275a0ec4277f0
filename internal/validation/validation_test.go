package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	v := Violations{}
	Required("title", "Sortie au musée", v)
	assert.True(t, v.Empty())

	Required("title", "   ", v)
	assert.Equal(t, "required", v["title"])
}

func TestOneOf(t *testing.T) {
	choices := []string{"in", "out", "outer", "trip"}

	v := Violations{}
	OneOf("location", "trip", choices, v)
	assert.True(t, v.Empty())

	OneOf("location", "ailleurs", choices, v)
	assert.Equal(t, "unknown_choice", v["location"])
}

func TestNonNegativeInt(t *testing.T) {
	v := Violations{}
	NonNegativeInt("nb_students", 0, v)
	NonNegativeInt("budget_hse_1", 150, v)
	assert.True(t, v.Empty())

	NonNegativeInt("budget_exp_1", -1, v)
	assert.Equal(t, "must_not_be_negative", v["budget_exp_1"])
}

func TestDateOrder(t *testing.T) {
	start := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

	v := Violations{}
	DateOrder("end_date", start, start, v)
	assert.True(t, v.Empty(), "same-day project is valid")

	DateOrder("end_date", start, start.AddDate(0, 1, 0), v)
	assert.True(t, v.Empty())

	DateOrder("end_date", start, start.AddDate(0, 0, -1), v)
	assert.Equal(t, "end_before_start", v["end_date"])
}
