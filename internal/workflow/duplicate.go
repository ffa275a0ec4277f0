package workflow

import (
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
)

// Duplicate copies a project the actor may edit into a fresh draft owned by
// the actor, keeping the descriptive fields and team but resetting the
// workflow state, the budget and the attached rows.
func (s *Service) Duplicate(actor Actor, id uint) (*models.Project, error) {
	if err := s.checkLock(false); err != nil {
		return nil, err
	}
	syStart, syEnd, syLabel, err := s.SY.Resolve(nil, nil)
	if err != nil {
		return nil, err
	}
	source, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanEdit(source) {
		return nil, ErrForbidden
	}

	now := s.now()
	dup := *source
	dup.ID = 0
	dup.Title = source.Title + " (copie)"
	dup.SchoolYear = syLabel
	dup.Status = string(StatusDraft)
	dup.CreatedAt = now
	dup.UID = actor.User.ID
	dup.ModifiedAt = now
	dup.ModifiedBy = actor.User.ID
	dup.ValidatedAt = nil
	dup.ValidatedBy = 0
	dup.Members = nil
	dup.Comments = nil
	dup.History = nil
	for _, kind := range models.BudgetKinds {
		for year := 1; year <= 2; year++ {
			amount, comment := dup.BudgetSlot(kind, year)
			*amount = 0
			*comment = ""
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dup).Error; err != nil {
			return err
		}
		for _, m := range source.Members {
			if err := tx.Create(&models.ProjectMember{ProjectID: dup.ID, PID: m.PID}).Error; err != nil {
				return err
			}
		}
		return s.countProject(tx, dup.SchoolYear, syStart, syEnd)
	})
	if err != nil {
		return nil, err
	}
	return &dup, nil
}
