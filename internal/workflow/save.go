package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/catalog"
	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/models"
	"github.com/nxpat/projets-lfs/internal/schoolyear"
)

// ProjectInput carries a submitted project form. ID == 0 creates, otherwise
// updates. Status is the requested target: draft, ready-1, ready, or adjust
// (keep the current status). Budgets and BudgetComments are keyed by slot,
// "hse_1" through "int_2"; absent keys mean zero/empty.
type ProjectInput struct {
	ID uint

	Title       string
	Objectives  string
	Description string
	Indicators  string
	Website     string

	StartDate time.Time
	EndDate   *time.Time // nil = projet ponctuel, une seule date

	Priority  string
	Paths     []string
	Skills    []string
	Divisions []string
	Members   []uint // personnel ids, porteur inclus

	Mode        string
	Requirement string
	Location    string
	IsRecurring bool

	NbStudents int
	Students   string

	FieldtripAddress   string
	FieldtripExtPeople string
	FieldtripImpact    string

	Budgets        map[string]int
	BudgetComments map[string]string

	SchoolYearChoice string // "current" ou "next"
	Status           string
}

// Save creates or updates a project from a submitted form, applying the
// normalization and consistency rules, appending one history snapshot per
// edit, and enqueueing the notification when a validation request is newly
// made. Returns the saved project and a warning for the user ("" if none).
func (s *Service) Save(actor Actor, in ProjectInput) (*models.Project, string, error) {
	if err := s.checkLock(false); err != nil {
		return nil, "", err
	}
	syStart, syEnd, syLabel, err := s.SY.Resolve(nil, nil)
	if err != nil {
		return nil, "", err
	}
	allowed := s.SY.Divisions(syLabel)

	var project models.Project
	isNew := in.ID == 0
	if !isNew {
		p, err := s.Get(in.ID)
		if err != nil {
			return nil, "", err
		}
		project = *p
		if !actor.CanEdit(&project) {
			return nil, "", ErrForbidden
		}
		if Status(project.Status) == StatusValidated {
			return nil, "", ErrValidated
		}
	}

	prev := Status(project.Status)
	requested := Status(in.Status)
	if requested == StatusAdjust {
		if isNew {
			return nil, "", ErrInvalidTransition
		}
		requested = prev
	}
	if !CanSubmit(prev, requested) {
		return nil, "", ErrInvalidTransition
	}

	// snapshot of the state being left, appended on every edit
	var entry *models.ProjectHistory
	old := project
	if !isNew {
		entry = &models.ProjectHistory{
			ProjectID: project.ID,
			Status:    project.Status,
			UpdatedAt: project.ModifiedAt,
			UpdatedBy: project.ModifiedBy,
		}
		if project.ValidatedAt != nil && project.ValidatedAt.After(project.ModifiedAt) {
			entry.UpdatedAt = *project.ValidatedAt
			entry.UpdatedBy = project.ValidatedBy
		}
	}

	if err := s.assign(&project, in, actor, syStart, syEnd, syLabel, allowed); err != nil {
		return nil, "", err
	}

	now := s.now()
	project.Status = string(requested)
	project.ModifiedAt = now
	project.ModifiedBy = actor.User.ID
	if isNew {
		project.CreatedAt = now
		project.UID = actor.User.ID
	}
	if entry != nil {
		trackChanges(entry, &old, &project)
	}

	members := in.Members
	warning := ""
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if isNew {
			if err := tx.Omit("Members", "Comments", "History").Create(&project).Error; err != nil {
				return err
			}
		} else if err := tx.Omit("Members", "Comments", "History").Save(&project).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		for _, pid := range members {
			if err := tx.Create(&models.ProjectMember{ProjectID: project.ID, PID: pid}).Error; err != nil {
				return err
			}
		}

		if entry != nil {
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}

		if isNew {
			if err := s.countProject(tx, project.SchoolYear, syStart, syEnd); err != nil {
				return err
			}
		}

		// notify on a newly made request only, not on an adjust resubmit
		if requested.Pending() && !prev.Pending() {
			if s.Queue == nil {
				warning = mailNotConnected
				return nil
			}
			if _, err := s.Queue.EnqueueTx(tx, actor.User.ID, project.Status, project.ID, "", ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	project.Members = make([]models.ProjectMember, 0, len(members))
	for _, pid := range members {
		project.Members = append(project.Members, models.ProjectMember{ProjectID: project.ID, PID: pid})
	}
	return &project, warning, nil
}

// assign copies and normalizes the form fields onto the project.
func (s *Service) assign(p *models.Project, in ProjectInput, actor Actor, syStart, syEnd time.Time, syLabel string, allowed []string) error {
	p.Title = strings.TrimSpace(in.Title)
	p.Objectives = strings.TrimSpace(in.Objectives)
	p.Description = strings.TrimSpace(in.Description)
	p.Indicators = strings.TrimSpace(in.Indicators)
	p.Website = normalizeWebsite(in.Website)
	if p.Title == "" || p.Objectives == "" || p.Description == "" {
		return ErrInvalidInput
	}

	if !catalog.ValidPriority(in.Priority) {
		return ErrInvalidInput
	}
	p.Priority = in.Priority
	p.Axis = catalog.AxisOf(in.Priority)

	for _, path := range in.Paths {
		if !catalog.ValidPath(path) {
			return ErrInvalidInput
		}
	}
	p.Paths = strings.Join(in.Paths, ",")
	for _, skill := range in.Skills {
		if !catalog.ValidSkill(skill) {
			return ErrInvalidInput
		}
	}
	p.Skills = strings.Join(in.Skills, ",")

	if !catalog.ValidMode(in.Mode) || !catalog.ValidRequirement(in.Requirement) || !catalog.ValidLocation(in.Location) {
		return ErrInvalidInput
	}
	p.Mode = in.Mode
	p.Requirement = in.Requirement
	p.Location = in.Location
	p.IsRecurring = in.IsRecurring

	p.StartDate = in.StartDate
	p.EndDate = in.StartDate
	if in.EndDate != nil {
		p.EndDate = *in.EndDate
	}
	if p.EndDate.Before(p.StartDate) {
		return ErrInvalidInput
	}

	switch in.SchoolYearChoice {
	case "", "current":
		p.SchoolYear = syLabel
	case "next":
		p.SchoolYear = schoolyear.Label(syStart.AddDate(1, 0, 0), syEnd.AddDate(1, 0, 0))
	default:
		return ErrInvalidInput
	}

	if len(in.Members) == 0 {
		return ErrInvalidInput
	}
	departments, err := s.memberDepartments(in.Members)
	if err != nil {
		return err
	}
	p.Departments = strings.Join(departments, ",")

	divs := make([]string, 0, len(in.Divisions))
	for _, raw := range in.Divisions {
		canon := divisions.Valid(raw, allowed)
		if canon == "" {
			return ErrInvalidInput
		}
		divs = appendUnique(divs, canon)
	}
	if len(divs) == 0 {
		return ErrInvalidInput
	}
	divisions.Sort(divs)
	p.Divisions = strings.Join(divs, ",")
	p.NbStudents = in.NbStudents

	// participation optionnelle : la liste nominative fait foi
	if in.Requirement == "no" && strings.TrimSpace(in.Students) != "" {
		roster, rosterDivs, err := parseRoster(in.Students, divs, allowed)
		if err != nil {
			return err
		}
		p.Students = roster
		p.NbStudents = strings.Count(roster, "\r\n") + 1
		p.Divisions = strings.Join(rosterDivs, ",")
	} else if in.Requirement == "yes" {
		p.Students = ""
	} else {
		p.Students = strings.TrimSpace(in.Students)
	}

	if p.IsFieldTrip() {
		p.FieldtripAddress = strings.TrimSpace(in.FieldtripAddress)
		p.FieldtripExtPeople = strings.TrimSpace(in.FieldtripExtPeople)
		p.FieldtripImpact = strings.TrimSpace(in.FieldtripImpact)
	} else {
		p.FieldtripAddress = ""
		p.FieldtripExtPeople = ""
		p.FieldtripImpact = ""
	}

	s.assignBudget(p, in)
	return nil
}

// assignBudget copies the budget slots then clears the fiscal years the
// project dates cannot reach. A school year "Y1 - Y2" spans two fiscal
// years: a project starting in Y2 has no year-1 budget, one ending in Y1 has
// no year-2 budget. Comments without an amount are dropped.
func (s *Service) assignBudget(p *models.Project, in ProjectInput) {
	y1, y2, ok := schoolyear.ParseLabel(p.SchoolYear)
	for _, kind := range models.BudgetKinds {
		for year := 1; year <= 2; year++ {
			slot := fmt.Sprintf("%s_%d", kind, year)
			amount, comment := p.BudgetSlot(kind, year)
			*amount = in.Budgets[slot]
			*comment = strings.TrimSpace(in.BudgetComments[slot])
			if *amount < 0 {
				*amount = 0
			}
			if ok {
				if year == 1 && p.StartDate.Year() == y2 {
					*amount = 0
				}
				if year == 2 && p.EndDate.Year() == y1 {
					*amount = 0
				}
			}
			if *amount == 0 {
				*comment = ""
			}
		}
	}
}

// trackChanges records on the snapshot the previous value of every tracked
// field that the save modified.
func trackChanges(entry *models.ProjectHistory, old, now *models.Project) {
	if !old.StartDate.Equal(now.StartDate) {
		v := old.StartDate
		entry.StartDate = &v
	}
	if !old.EndDate.Equal(now.EndDate) {
		v := old.EndDate
		entry.EndDate = &v
	}
	if old.NbStudents != now.NbStudents {
		v := old.NbStudents
		entry.NbStudents = &v
	}
	slots := []struct {
		oldAmount, newAmount int
		target               **int
	}{
		{old.BudgetHse1, now.BudgetHse1, &entry.BudgetHse1},
		{old.BudgetExp1, now.BudgetExp1, &entry.BudgetExp1},
		{old.BudgetTrip1, now.BudgetTrip1, &entry.BudgetTrip1},
		{old.BudgetInt1, now.BudgetInt1, &entry.BudgetInt1},
		{old.BudgetHse2, now.BudgetHse2, &entry.BudgetHse2},
		{old.BudgetExp2, now.BudgetExp2, &entry.BudgetExp2},
		{old.BudgetTrip2, now.BudgetTrip2, &entry.BudgetTrip2},
		{old.BudgetInt2, now.BudgetInt2, &entry.BudgetInt2},
	}
	for _, slot := range slots {
		if slot.oldAmount != slot.newAmount {
			v := slot.oldAmount
			*slot.target = &v
		}
	}
}

// countProject bumps the owning school-year counter, creating the next-year
// row on its first project.
func (s *Service) countProject(tx *gorm.DB, label string, syStart, syEnd time.Time) error {
	var sy models.SchoolYear
	err := tx.Where("sy = ?", label).First(&sy).Error
	if err == gorm.ErrRecordNotFound {
		current := s.SY.Divisions(schoolyear.Label(syStart, syEnd))
		sy = models.SchoolYear{
			SY:         label,
			SYStart:    syStart.AddDate(1, 0, 0),
			SYEnd:      syEnd.AddDate(1, 0, 0),
			NbProjects: 1,
			Divisions:  strings.Join(current, ","),
		}
		return tx.Create(&sy).Error
	}
	if err != nil {
		return err
	}
	sy.NbProjects++
	return tx.Save(&sy).Error
}

// memberDepartments derives the sorted department set from the team members.
func (s *Service) memberDepartments(pids []uint) ([]string, error) {
	var staff []models.Personnel
	if err := s.DB.Where("id IN ?", pids).Find(&staff).Error; err != nil {
		return nil, err
	}
	if len(staff) != len(pids) {
		return nil, ErrInvalidInput
	}
	var out []string
	for _, member := range staff {
		out = appendUnique(out, member.Department)
	}
	sort.Strings(out)
	return out, nil
}

func normalizeWebsite(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return s
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
