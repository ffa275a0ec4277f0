package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
	"github.com/nxpat/projets-lfs/internal/notify"
)

// AddComment appends a comment to the project and flags the recipients'
// accounts with a new-message marker. Comments stay open under a level 1
// lock; only the full maintenance lock blocks them. The team, gestion and
// direction may comment.
func (s *Service) AddComment(actor Actor, projectID uint, text string) (*models.ProjectComment, string, error) {
	if err := s.checkLock(true); err != nil {
		return nil, "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", ErrInvalidInput
	}
	project, err := s.Get(projectID)
	if err != nil {
		return nil, "", err
	}
	if !actor.CanEdit(project) && !actor.IsManagement() {
		return nil, "", ErrForbidden
	}

	recipients, err := s.CommentRecipients(project, actor)
	if err != nil {
		return nil, "", err
	}

	comment := models.ProjectComment{
		ProjectID: project.ID,
		UID:       actor.User.ID,
		Message:   text,
		PostedAt:  s.now(),
	}
	warning := ""
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		for _, pid := range recipients {
			if err := markNewMessage(tx, pid, project.ID); err != nil {
				return err
			}
		}
		if len(recipients) == 0 {
			warning = "Attention : aucune notification n'a pu être envoyée (aucun destinataire)."
			return nil
		}
		if s.Queue == nil {
			warning = mailNotConnected
			return nil
		}
		_, err := s.Queue.EnqueueTx(tx, actor.User.ID, notify.KindComment, project.ID,
			strconv.FormatUint(uint64(comment.ID), 10), joinIDs(recipients))
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return &comment, warning, nil
}

// CommentRecipients resolves who hears about a new comment: the creator, the
// team, everyone who already commented, and gestion staff who opted in with
// the email=default-c preference. The actor is excluded.
func (s *Service) CommentRecipients(project *models.Project, actor Actor) ([]uint, error) {
	pids := map[uint]bool{}

	var creator models.User
	if err := s.DB.First(&creator, project.UID).Error; err == nil {
		pids[creator.PID] = true
	}
	for _, m := range project.Members {
		pids[m.PID] = true
	}

	var commenters []models.ProjectComment
	if err := s.DB.Where("project_id = ?", project.ID).Find(&commenters).Error; err != nil {
		return nil, err
	}
	for _, c := range commenters {
		var u models.User
		if err := s.DB.First(&u, c.UID).Error; err == nil {
			pids[u.PID] = true
		}
	}

	var gestion []models.Personnel
	if err := s.DB.Preload("User").Where("role = ?", "gestion").Find(&gestion).Error; err != nil {
		return nil, err
	}
	for _, g := range gestion {
		if g.User.HasPreference("email=default-c") {
			pids[g.ID] = true
		}
	}

	delete(pids, actor.Personnel.ID)
	out := make([]uint, 0, len(pids))
	for pid := range pids {
		out = append(out, pid)
	}
	return out, nil
}

// MarkMessagesRead clears the new-message marker for one project on the
// actor's account, called when the fiche projet is displayed.
func (s *Service) MarkMessagesRead(actor Actor, projectID uint) error {
	id := strconv.FormatUint(uint64(projectID), 10)
	var kept []string
	for _, m := range actor.User.NewMessageIDs() {
		if m != id {
			kept = append(kept, m)
		}
	}
	joined := strings.Join(kept, ",")
	if joined == actor.User.NewMessages {
		return nil
	}
	return s.DB.Model(&models.User{}).Where("id = ?", actor.User.ID).
		Update("new_messages", joined).Error
}

// markNewMessage appends the project id to the recipient's marker list,
// skipping staff without an account and duplicate markers.
func markNewMessage(tx *gorm.DB, pid, projectID uint) error {
	var user models.User
	err := tx.Where("pid = ?", pid).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	id := strconv.FormatUint(uint64(projectID), 10)
	for _, m := range user.NewMessageIDs() {
		if m == id {
			return nil
		}
	}
	marks := user.NewMessages
	if marks == "" {
		marks = id
	} else {
		marks += "," + id
	}
	return tx.Model(&user).Update("new_messages", marks).Error
}

func joinIDs(ids []uint) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprint(id))
	}
	return strings.Join(out, ",")
}
