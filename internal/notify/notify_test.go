package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/models"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Personnel{}, &models.User{},
		&models.Project{}, &models.ProjectMember{}, &models.ProjectComment{},
		&models.QueuedAction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedStaff(t *testing.T, db *gorm.DB, email, role, prefs string) models.Personnel {
	p := models.Personnel{Email: email, Name: strings.Split(email, "@")[0], Firstname: "Test", Department: "Langues", Role: role}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed personnel: %v", err)
	}
	u := models.User{PID: p.ID, Password: "hash", Preferences: prefs}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return p
}

func seedProject(t *testing.T, db *gorm.DB, status string, memberPIDs ...uint) *models.Project {
	now := time.Date(2025, time.October, 6, 10, 0, 0, 0, time.UTC)
	p := models.Project{
		SchoolYear: "2025 - 2026", Axis: "Bien être", Priority: "Accueillir, accompagner, aider",
		Divisions: "6eA", Mode: "En groupe", Requirement: "yes", Location: "in",
		StartDate: now, EndDate: now,
		Title: "Atelier lecture", Objectives: "o", Description: "d",
		CreatedAt: now, UID: 1, ModifiedAt: now, ModifiedBy: 1, Status: status,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	for _, pid := range memberPIDs {
		m := models.ProjectMember{ProjectID: p.ID, PID: pid}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed member: %v", err)
		}
		p.Members = append(p.Members, m)
	}
	return &p
}

func testDispatcher(db *gorm.DB) (*Dispatcher, *ConsoleMailer) {
	mailer := &ConsoleMailer{Log: zerolog.Nop()}
	return &Dispatcher{DB: db, Mailer: mailer, AppWebsite: "https://projets.lfs.example/"}, mailer
}

func TestDispatchRequestOptIn(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	seedStaff(t, db, "gestion@lfs.example", "gestion", "email=ready-1")
	seedStaff(t, db, "direction@lfs.example", "direction", "") // pas d'opt-in

	project := seedProject(t, db, "ready-1", author.ID)
	d, mailer := testDispatcher(db)

	warning, err := d.Dispatch("ready-1", project, &author, nil, "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning %q", warning)
	}
	if len(mailer.Sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.Sent))
	}
	sent := mailer.Sent[0]
	if !strings.Contains(sent.To, "gestion@lfs.example") {
		t.Fatalf("opted-in gestion must receive, got %q", sent.To)
	}
	if strings.Contains(sent.To, "direction@lfs.example") {
		t.Fatalf("non-opted direction must not receive")
	}
	if !strings.Contains(sent.Subject, "demande d'accord") {
		t.Fatalf("subject %q", sent.Subject)
	}
	if !strings.Contains(sent.Body, "Atelier lecture") || !strings.Contains(sent.Body, "6e A") {
		t.Fatalf("body missing project details: %q", sent.Body)
	}
}

func TestDispatchRequestWithBudgetSubject(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	seedStaff(t, db, "gestion@lfs.example", "gestion", "email=ready-1")

	project := seedProject(t, db, "ready-1", author.ID)
	project.BudgetExp1 = 200
	db.Save(project)

	d, mailer := testDispatcher(db)
	if _, err := d.Dispatch("ready-1", project, &author, nil, ""); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(mailer.Sent[0].Subject, "inclusion au budget") {
		t.Fatalf("subject must mention the budget, got %q", mailer.Sent[0].Subject)
	}
}

func TestDispatchApprovalWithoutBudget(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	colleague := seedStaff(t, db, "collegue@lfs.example", "", "")
	direction := seedStaff(t, db, "direction@lfs.example", "direction", "")

	project := seedProject(t, db, "validated-1", author.ID, colleague.ID)
	d, mailer := testDispatcher(db)
	if _, err := d.Dispatch("validated-1", project, &direction, nil, ""); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	subject := mailer.Sent[0].Subject
	if !strings.Contains(subject, "approuvé") {
		t.Fatalf("subject %q", subject)
	}
	if strings.Contains(subject, "budget") {
		t.Fatalf("zero-budget approval must not mention the budget, got %q", subject)
	}
}

func TestDispatchExcludesActor(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	colleague := seedStaff(t, db, "collegue@lfs.example", "", "")

	project := seedProject(t, db, "validated", author.ID, colleague.ID)
	d, mailer := testDispatcher(db)

	// l'auteur de la décision est membre : exclu des destinataires
	warning, err := d.Dispatch("validated", project, &author, nil, "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if warning != "" {
		t.Fatalf("warning %q", warning)
	}
	if strings.Contains(mailer.Sent[0].To, "prof@lfs.example") {
		t.Fatalf("actor must be excluded, got %q", mailer.Sent[0].To)
	}
	if !strings.Contains(mailer.Sent[0].To, "collegue@lfs.example") {
		t.Fatalf("colleague missing from %q", mailer.Sent[0].To)
	}
}

func TestDispatchNoRecipientWarning(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	project := seedProject(t, db, "validated", author.ID) // seul membre = acteur

	d, mailer := testDispatcher(db)
	warning, err := d.Dispatch("validated", project, &author, nil, "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if warning != noRecipientWarning {
		t.Fatalf("expected no-recipient warning, got %q", warning)
	}
	if len(mailer.Sent) != 0 {
		t.Fatalf("nothing must be sent")
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	project := seedProject(t, db, "draft", author.ID)

	d, _ := testDispatcher(db)
	warning, err := d.Dispatch("bizarre", project, &author, nil, "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if warning != "Attention : notification inconnue (bizarre)." {
		t.Fatalf("warning %q", warning)
	}
}

func TestDispatchValidatedAlsoMailsGestion(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	colleague := seedStaff(t, db, "collegue@lfs.example", "", "")
	seedStaff(t, db, "gestion@lfs.example", "gestion", "email=validated")

	project := seedProject(t, db, "validated", author.ID, colleague.ID)
	d, mailer := testDispatcher(db)
	if _, err := d.Dispatch("validated", project, &author, nil, ""); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(mailer.Sent) != 2 {
		t.Fatalf("expected team mail plus gestion broadcast, got %d", len(mailer.Sent))
	}
	if !strings.Contains(mailer.Sent[1].To, "gestion@lfs.example") {
		t.Fatalf("gestion broadcast to %q", mailer.Sent[1].To)
	}
}

func TestQueueEnqueueAndConsume(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	colleague := seedStaff(t, db, "collegue@lfs.example", "", "")
	var authorUser models.User
	if err := db.Where("pid = ?", author.ID).First(&authorUser).Error; err != nil {
		t.Fatalf("author user: %v", err)
	}

	project := seedProject(t, db, "ready-1", author.ID, colleague.ID)
	seedStaff(t, db, "gestion@lfs.example", "gestion", "email=ready-1")

	q := NewQueue(db)
	q.Now = func() time.Time { return time.Date(2025, time.October, 6, 10, 0, 0, 0, time.UTC) }

	var action *models.QueuedAction
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		action, err = q.EnqueueTx(tx, authorUser.ID, "ready-1", project.ID, "", "")
		return err
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if action.Code == "" || action.Status != models.ActionPending {
		t.Fatalf("unexpected action %+v", action)
	}
	if action.Parameters != fmt.Sprintf("ready-1,%d", project.ID) {
		t.Fatalf("parameters %q", action.Parameters)
	}

	pending, err := q.Pending(authorUser.ID)
	if err != nil || pending == nil || pending.ID != action.ID {
		t.Fatalf("pending lookup: %v %v", pending, err)
	}

	d, mailer := testDispatcher(db)
	warning, err := q.Consume(d, action.ID, authorUser.ID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if warning != "" {
		t.Fatalf("warning %q", warning)
	}
	if len(mailer.Sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.Sent))
	}

	// consommée avec succès : la ligne disparaît
	var count int64
	db.Model(&models.QueuedAction{}).Count(&count)
	if count != 0 {
		t.Fatalf("consumed action must be deleted, %d rows left", count)
	}
}

func TestQueueConsumeFailureMarksAction(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	var authorUser models.User
	if err := db.Where("pid = ?", author.ID).First(&authorUser).Error; err != nil {
		t.Fatalf("author user: %v", err)
	}

	q := NewQueue(db)
	var action *models.QueuedAction
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		// projet inexistant : l'exécution échouera
		action, err = q.EnqueueTx(tx, authorUser.ID, "ready-1", 9999, "", "")
		return err
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d, _ := testDispatcher(db)
	warning, err := q.Consume(d, action.ID, authorUser.ID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if warning != "Projet introuvable." {
		t.Fatalf("warning %q", warning)
	}

	var failed models.QueuedAction
	if err := db.First(&failed, action.ID).Error; err != nil {
		t.Fatalf("failed action must be kept: %v", err)
	}
	if failed.Status != models.ActionFailed {
		t.Fatalf("status %q", failed.Status)
	}

	// une action échouée n'est plus consommable
	warning, err = q.Consume(d, action.ID, authorUser.ID)
	if err != nil || warning != "Aucune action en attente." {
		t.Fatalf("re-consume = %q %v", warning, err)
	}
}

func TestQueueConsumeComment(t *testing.T) {
	db := setupTestDB(t, t.Name())
	author := seedStaff(t, db, "prof@lfs.example", "", "")
	colleague := seedStaff(t, db, "collegue@lfs.example", "", "")
	var authorUser models.User
	if err := db.Where("pid = ?", author.ID).First(&authorUser).Error; err != nil {
		t.Fatalf("author user: %v", err)
	}

	project := seedProject(t, db, "ready", author.ID, colleague.ID)
	comment := models.ProjectComment{ProjectID: project.ID, UID: authorUser.ID,
		Message: "Un mot sur le planning", PostedAt: time.Now()}
	if err := db.Create(&comment).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}

	q := NewQueue(db)
	var action *models.QueuedAction
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		action, err = q.EnqueueTx(tx, authorUser.ID, KindComment, project.ID,
			fmt.Sprint(comment.ID), fmt.Sprint(colleague.ID))
		return err
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d, mailer := testDispatcher(db)
	warning, err := q.Consume(d, action.ID, authorUser.ID)
	if err != nil || warning != "" {
		t.Fatalf("consume = %q %v", warning, err)
	}
	sent := mailer.Sent[0]
	if !strings.Contains(sent.To, "collegue@lfs.example") {
		t.Fatalf("to %q", sent.To)
	}
	if !strings.Contains(sent.Body, "Un mot sur le planning") {
		t.Fatalf("comment text missing from body")
	}
}

func TestRemoveAccents(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Éléonore Brière", "Eleonore Briere"},
		{"français", "francais"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := RemoveAccents(c.in); got != c.want {
			t.Fatalf("RemoveAccents(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractAddress(t *testing.T) {
	if got := extractAddress("Jean Dupont <jean@lfs.example>"); got != "jean@lfs.example" {
		t.Fatalf("got %q", got)
	}
	if got := extractAddress("jean@lfs.example"); got != "jean@lfs.example" {
		t.Fatalf("bare address must pass through, got %q", got)
	}
}
