package workflow

import (
	"time"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
	"github.com/nxpat/projets-lfs/internal/notify"
	"github.com/nxpat/projets-lfs/internal/schoolyear"
)

// Service runs the project status workflow: guarded transitions, history
// snapshotting and notification enqueueing, all inside one transaction per
// operation. Queue may be nil when the mail collaborator is not configured;
// transitions then succeed with a warning instead of a notification.
type Service struct {
	DB    *gorm.DB
	SY    *schoolyear.Resolver
	Queue *notify.Queue
	Now   func() time.Time
}

func NewService(db *gorm.DB, sy *schoolyear.Resolver, queue *notify.Queue) *Service {
	return &Service{DB: db, SY: sy, Queue: queue}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const mailNotConnected = "Messagerie non connectée : aucune notification envoyée par e-mail."

// Dashboard returns the global lock row, creating the default open row on
// first use.
func (s *Service) Dashboard() (*models.Dashboard, error) {
	var dash models.Dashboard
	err := s.DB.First(&dash).Error
	if err == gorm.ErrRecordNotFound {
		dash = models.Dashboard{Lock: 0}
		if err := s.DB.Create(&dash).Error; err != nil {
			return nil, err
		}
		return &dash, nil
	}
	if err != nil {
		return nil, err
	}
	return &dash, nil
}

// checkLock rejects mutations while the advisory global lock is set.
// level 2 blocks everyone; level 1 blocks everything but comments.
func (s *Service) checkLock(commentOnly bool) error {
	dash, err := s.Dashboard()
	if err != nil {
		return err
	}
	if dash.Lock == 0 {
		return nil
	}
	if commentOnly && dash.Lock < 2 {
		return nil
	}
	return ErrLocked
}

// SetLock toggles the global lock. Management may open the base or close it
// at level 1; admin closes at level 2 (blocking management as well). A level
// 2 lock can only be reopened by admin.
func (s *Service) SetLock(actor Actor, open bool) error {
	if !actor.IsManagement() {
		return ErrForbidden
	}
	dash, err := s.Dashboard()
	if err != nil {
		return err
	}
	if dash.Lock == 2 && !actor.IsAdmin() {
		return ErrLocked
	}
	switch {
	case open:
		dash.Lock = 0
		dash.LockMessage = ""
	case actor.IsAdmin():
		dash.Lock = 2
		dash.LockMessage = "La base est momentanément fermée pour maintenance. La consultation reste ouverte."
	default:
		dash.Lock = 1
		dash.LockMessage = "La base est momentanément fermée pour maintenance. La consultation reste ouverte."
	}
	return s.DB.Save(dash).Error
}

// Get loads a project with its members, or ErrNotFound.
func (s *Service) Get(id uint) (*models.Project, error) {
	var project models.Project
	err := s.DB.Preload("Members").First(&project, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Validate applies the direction decision on a pending request:
// ready-1 -> validated-1, ready -> validated.
func (s *Service) Validate(actor Actor, id uint) (*models.Project, string, error) {
	return s.decide(actor, id, func(prev Status) (Status, bool) {
		next, ok := decisionTable[prev]
		return next, ok
	}, false)
}

// Reject refuses a pending request: ready-1|ready -> rejected.
func (s *Service) Reject(actor Actor, id uint) (*models.Project, string, error) {
	return s.decide(actor, id, func(prev Status) (Status, bool) {
		return StatusRejected, prev.Pending()
	}, false)
}

// Devalidate reopens a validated project: validated -> validated-10. The
// project becomes editable again as if draft.
func (s *Service) Devalidate(actor Actor, id uint) (*models.Project, string, error) {
	return s.decide(actor, id, func(prev Status) (Status, bool) {
		return StatusValidated10, prev == StatusValidated
	}, true)
}

// decide factors the three direction decisions: guard, snapshot of the state
// being left, stamp, status change, notification enqueue — one transaction.
func (s *Service) decide(actor Actor, id uint, transition func(Status) (Status, bool), fromValidated bool) (*models.Project, string, error) {
	if err := s.checkLock(false); err != nil {
		return nil, "", err
	}
	if !actor.IsDirection() {
		return nil, "", ErrForbidden
	}
	project, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}
	next, ok := transition(Status(project.Status))
	if !ok {
		return nil, "", ErrInvalidTransition
	}

	entry := models.ProjectHistory{
		ProjectID: project.ID,
		Status:    project.Status,
		UpdatedAt: project.ModifiedAt,
		UpdatedBy: project.ModifiedBy,
	}
	if fromValidated && project.ValidatedAt != nil {
		entry.UpdatedAt = *project.ValidatedAt
		entry.UpdatedBy = project.ValidatedBy
	}

	date := s.now()
	project.ValidatedAt = &date
	project.ValidatedBy = actor.User.ID
	project.Status = string(next)

	warning := ""
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Omit("Members", "Comments", "History").Save(project).Error; err != nil {
			return err
		}
		if s.Queue == nil {
			warning = mailNotConnected
			return nil
		}
		_, err := s.Queue.EnqueueTx(tx, actor.User.ID, project.Status, project.ID, "", "")
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return project, warning, nil
}

// Delete removes a project and its owned rows. Only the creator may delete,
// and only before validation; the owning school year's counter is
// decremented, and an emptied non-current year row is removed.
func (s *Service) Delete(actor Actor, id uint) error {
	if err := s.checkLock(false); err != nil {
		return err
	}
	_, _, currentLabel, err := s.SY.Resolve(nil, nil)
	if err != nil {
		return err
	}
	project, err := s.Get(id)
	if err != nil {
		return err
	}
	if actor.User.ID != project.UID || Status(project.Status) == StatusValidated {
		return ErrForbidden
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var sy models.SchoolYear
		if err := tx.Where("sy = ?", project.SchoolYear).First(&sy).Error; err == nil {
			sy.NbProjects--
			if sy.NbProjects <= 0 && sy.SY != currentLabel {
				if err := tx.Delete(&sy).Error; err != nil {
					return err
				}
			} else if err := tx.Save(&sy).Error; err != nil {
				return err
			}
		}
		for _, owned := range []any{&models.ProjectMember{}, &models.ProjectComment{}, &models.ProjectHistory{}} {
			if err := tx.Where("project_id = ?", project.ID).Delete(owned).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, project.ID).Error
	})
}
