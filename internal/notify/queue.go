package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
)

// Queue is the notification outbox: rows are written in the same transaction
// as the workflow change and consumed afterwards, decoupling transitions
// from mail-transport latency and failure.
type Queue struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewQueue(db *gorm.DB) *Queue { return &Queue{DB: db} }

func (q *Queue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

// EnqueueTx records a send_notification action inside the caller's
// transaction so it shares the workflow commit/rollback fate.
func (q *Queue) EnqueueTx(tx *gorm.DB, uid uint, kind string, projectID uint, extra, options string) (*models.QueuedAction, error) {
	parameters := fmt.Sprintf("%s,%d", kind, projectID)
	if extra != "" {
		parameters += "," + extra
	}
	action := models.QueuedAction{
		Code:       uuid.NewString(),
		UID:        uid,
		Timestamp:  q.now(),
		Status:     models.ActionPending,
		ActionType: "send_notification",
		Parameters: parameters,
		Options:    options,
	}
	if err := tx.Create(&action).Error; err != nil {
		return nil, err
	}
	return &action, nil
}

// Pending returns the oldest pending action queued by the user, if any.
func (q *Queue) Pending(uid uint) (*models.QueuedAction, error) {
	var action models.QueuedAction
	err := q.DB.Where("uid = ? AND status = ?", uid, models.ActionPending).
		Order("id").First(&action).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// Consume executes one pending action queued by the user: resolves the
// notification, sends it, deletes the row on success and marks it failed
// otherwise. Failed rows are not retried automatically. Returns the warning
// or failure text to surface, "" on clean success.
func (q *Queue) Consume(d *Dispatcher, actionID, uid uint) (string, error) {
	var action models.QueuedAction
	if err := q.DB.Where("id = ? AND uid = ?", actionID, uid).First(&action).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "Aucune action trouvée.", nil
		}
		return "", err
	}
	if action.ActionType != "send_notification" || action.Status != models.ActionPending {
		return "Aucune action en attente.", nil
	}

	failure := q.run(d, &action)
	if failure != "" {
		return failure, q.DB.Model(&action).Update("status", models.ActionFailed).Error
	}
	return "", q.DB.Delete(&action).Error
}

// run resolves and dispatches; returns a failure description or "".
func (q *Queue) run(d *Dispatcher, action *models.QueuedAction) string {
	parameters := strings.Split(action.Parameters, ",")
	if len(parameters) < 2 {
		return "Paramètres d'action invalides."
	}
	kind := parameters[0]

	projectID, err := strconv.Atoi(parameters[1])
	if err != nil {
		return "Paramètres d'action invalides."
	}
	var project models.Project
	if err := q.DB.Preload("Members").First(&project, projectID).Error; err != nil {
		return "Projet introuvable."
	}

	var user models.User
	if err := q.DB.First(&user, action.UID).Error; err != nil {
		return "Utilisateur introuvable."
	}
	var actor models.Personnel
	if err := q.DB.First(&actor, user.PID).Error; err != nil {
		return "Personnel introuvable."
	}

	var recipients []uint
	text := ""
	if kind == KindComment {
		if len(parameters) < 3 {
			return "Paramètres d'action invalides."
		}
		commentID, err := strconv.Atoi(parameters[2])
		if err != nil {
			return "Paramètres d'action invalides."
		}
		var comment models.ProjectComment
		if err := q.DB.First(&comment, commentID).Error; err != nil {
			return "Commentaire introuvable."
		}
		text = comment.Message
		for _, s := range strings.Split(action.Options, ",") {
			if pid, err := strconv.Atoi(s); err == nil {
				recipients = append(recipients, uint(pid))
			}
		}
	}

	warning, err := d.Dispatch(kind, &project, &actor, recipients, text)
	if err != nil {
		return "Échec de l'envoi : " + err.Error()
	}
	return warning
}
