package models

import (
	"strings"
	"time"
)

// Project is the root aggregate: a pedagogical project proposed by staff,
// reviewed by gestion and validated by direction.
type Project struct {
	ID uint `gorm:"primaryKey"`

	// classification
	SchoolYear string `gorm:"not null;index"` // "YYYY - YYYY"
	Axis       string `gorm:"not null"`       // dérivé de Priority, jamais saisi
	Priority   string `gorm:"not null"`
	Paths      string `gorm:"not null"` // parcours éducatifs, CSV
	Skills     string `gorm:"not null"` // compétences transversales, CSV
	Divisions  string `gorm:"not null"` // classes, codes canoniques, CSV
	Departments string `gorm:"not null"` // dérivé des membres, CSV
	Mode        string `gorm:"not null"`
	Requirement string `gorm:"not null"` // yes, no
	Location    string `gorm:"not null"` // in, out, outer, trip
	IsRecurring bool

	// schedule
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"` // = StartDate pour un projet ponctuel

	// narrative
	Title      string `gorm:"not null"`
	Objectives string `gorm:"not null"`
	Description string `gorm:"not null"`
	Indicators  string `gorm:"not null"`
	Website     string

	// participation
	NbStudents int    `gorm:"not null;default:0"`
	Students   string // liste nominative, uniquement si Requirement == "no"

	// field trip only
	FieldtripAddress   string
	FieldtripExtPeople string
	FieldtripImpact    string

	// budget, deux années fiscales par année scolaire
	BudgetHse1  int `gorm:"column:budget_hse_1;not null;default:0"`
	BudgetHseC1 string `gorm:"column:budget_hse_c_1"`
	BudgetExp1  int `gorm:"column:budget_exp_1;not null;default:0"`
	BudgetExpC1 string `gorm:"column:budget_exp_c_1"`
	BudgetTrip1 int `gorm:"column:budget_trip_1;not null;default:0"`
	BudgetTripC1 string `gorm:"column:budget_trip_c_1"`
	BudgetInt1  int `gorm:"column:budget_int_1;not null;default:0"`
	BudgetIntC1 string `gorm:"column:budget_int_c_1"`
	BudgetHse2  int `gorm:"column:budget_hse_2;not null;default:0"`
	BudgetHseC2 string `gorm:"column:budget_hse_c_2"`
	BudgetExp2  int `gorm:"column:budget_exp_2;not null;default:0"`
	BudgetExpC2 string `gorm:"column:budget_exp_c_2"`
	BudgetTrip2 int `gorm:"column:budget_trip_2;not null;default:0"`
	BudgetTripC2 string `gorm:"column:budget_trip_c_2"`
	BudgetInt2  int `gorm:"column:budget_int_2;not null;default:0"`
	BudgetIntC2 string `gorm:"column:budget_int_c_2"`

	// ownership / audit
	CreatedAt   time.Time `gorm:"not null"`
	UID         uint      `gorm:"not null;index"` // créateur
	ModifiedAt  time.Time `gorm:"not null"`
	ModifiedBy  uint      `gorm:"not null"`
	ValidatedAt *time.Time
	ValidatedBy uint

	Status string `gorm:"not null;index"`

	Members  []ProjectMember  `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	Comments []ProjectComment `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	History  []ProjectHistory `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// ProjectMember joins a Project to a Personnel (the pedagogical team).
type ProjectMember struct {
	ID        uint `gorm:"primaryKey"`
	ProjectID uint `gorm:"not null;index"`
	PID       uint `gorm:"not null"`
}

// ProjectComment is an append-only free-text message on a project.
type ProjectComment struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"not null;index"`
	UID       uint   `gorm:"not null"`
	Message   string `gorm:"not null"`
	PostedAt  time.Time `gorm:"not null"`
}

// ProjectHistory is an immutable snapshot appended on every mutating
// transition. It records the status being left and the previous value of any
// changed tracked field; nil pointers mean the field did not change.
type ProjectHistory struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"not null;index"`
	Status    string `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	UpdatedBy uint      `gorm:"not null"`

	StartDate  *time.Time
	EndDate    *time.Time
	NbStudents *int

	BudgetHse1  *int `gorm:"column:budget_hse_1"`
	BudgetExp1  *int `gorm:"column:budget_exp_1"`
	BudgetTrip1 *int `gorm:"column:budget_trip_1"`
	BudgetInt1  *int `gorm:"column:budget_int_1"`
	BudgetHse2  *int `gorm:"column:budget_hse_2"`
	BudgetExp2  *int `gorm:"column:budget_exp_2"`
	BudgetTrip2 *int `gorm:"column:budget_trip_2"`
	BudgetInt2  *int `gorm:"column:budget_int_2"`
}

// BudgetKinds enumerates the four budget envelopes.
var BudgetKinds = []string{"hse", "exp", "trip", "int"}

// BudgetSlot returns pointers to the amount and justification fields for a
// budget kind and fiscal year (1 or 2). Unknown slots return nils.
func (p *Project) BudgetSlot(kind string, year int) (*int, *string) {
	switch {
	case kind == "hse" && year == 1:
		return &p.BudgetHse1, &p.BudgetHseC1
	case kind == "exp" && year == 1:
		return &p.BudgetExp1, &p.BudgetExpC1
	case kind == "trip" && year == 1:
		return &p.BudgetTrip1, &p.BudgetTripC1
	case kind == "int" && year == 1:
		return &p.BudgetInt1, &p.BudgetIntC1
	case kind == "hse" && year == 2:
		return &p.BudgetHse2, &p.BudgetHseC2
	case kind == "exp" && year == 2:
		return &p.BudgetExp2, &p.BudgetExpC2
	case kind == "trip" && year == 2:
		return &p.BudgetTrip2, &p.BudgetTripC2
	case kind == "int" && year == 2:
		return &p.BudgetInt2, &p.BudgetIntC2
	}
	return nil, nil
}

// HasBudget is true iff any of the eight budget amounts is > 0.
func (p *Project) HasBudget() bool {
	for _, kind := range BudgetKinds {
		for year := 1; year <= 2; year++ {
			if amount, _ := p.BudgetSlot(kind, year); amount != nil && *amount > 0 {
				return true
			}
		}
	}
	return false
}

// IsFieldTrip reports a day trip or an overnight trip.
func (p *Project) IsFieldTrip() bool {
	return p.Location == "outer" || p.Location == "trip"
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (p *Project) DivisionList() []string  { return splitCSV(p.Divisions) }
func (p *Project) PathList() []string      { return splitCSV(p.Paths) }
func (p *Project) SkillList() []string     { return splitCSV(p.Skills) }
func (p *Project) DepartmentList() []string { return splitCSV(p.Departments) }

// HasMember reports whether the personnel id belongs to the project team.
// Members must be preloaded.
func (p *Project) HasMember(pid uint) bool {
	for _, m := range p.Members {
		if m.PID == pid {
			return true
		}
	}
	return false
}
