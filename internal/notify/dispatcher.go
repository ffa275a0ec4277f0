package notify

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nxpat/projets-lfs/internal/divisions"
	"github.com/nxpat/projets-lfs/internal/models"
)

// Notification kinds follow the workflow statuses, plus "comment" and
// "admin".
const (
	KindComment = "comment"
	KindAdmin   = "admin"
)

var statusKinds = map[string]bool{
	"ready-1":      true,
	"ready":        true,
	"validated-1":  true,
	"validated":    true,
	"validated-10": true,
	"rejected":     true,
}

// Dispatcher resolves recipients and message content for workflow events and
// forwards them to the mail collaborator. It never blocks or rolls back the
// triggering transition: failures surface as warning strings or transport
// errors handled by the queue.
type Dispatcher struct {
	DB         *gorm.DB
	Mailer     Mailer
	AppWebsite string // base URL, trailing slash included
}

const noRecipientWarning = "Attention : aucune notification n'a pu être envoyée (aucun destinataire)."

type message struct {
	recipients []string // emails
	body       string
	subject    string
}

// Dispatch sends the notification(s) for a workflow event. The actor is
// always excluded from the recipient set. A non-empty warning means no
// recipient resolved or the kind is unknown (a caller bug, surfaced as a
// string by design); err reports a mail-transport failure only.
func (d *Dispatcher) Dispatch(kind string, project *models.Project, actor *models.Personnel, recipientPIDs []uint, text string) (warning string, err error) {
	var messages []message

	switch {
	case kind == KindAdmin:
		if m := d.adminMessage(actor, text); m != nil {
			messages = append(messages, *m)
		}
	case kind == KindComment:
		if m := d.commentMessage(project, actor, recipientPIDs, text); m != nil {
			messages = append(messages, *m)
		}
	case kind == "ready-1" || kind == "ready":
		if m := d.requestMessage(project, actor); m != nil {
			messages = append(messages, *m)
		}
	case statusKinds[kind]:
		if m := d.resultMessage(project, actor); m != nil {
			messages = append(messages, *m)
		}
		if kind == "validated" {
			if m := d.managementMessage(project, actor); m != nil {
				messages = append(messages, *m)
			}
		}
	default:
		return fmt.Sprintf("Attention : notification inconnue (%s).", kind), nil
	}

	sent := false
	for _, m := range messages {
		recipients := exclude(m.recipients, actor.Email)
		if len(recipients) == 0 {
			continue
		}
		from := d.formatAddr([]string{actor.Email})
		to := d.formatAddr(recipients)
		if err := d.Mailer.Send(from, to, m.body, m.subject); err != nil {
			return "", err
		}
		sent = true
	}
	if !sent {
		return noRecipientWarning, nil
	}
	return "", nil
}

// requestMessage notifies gestion/direction of a new validation request.
// Opt-in only: absence of the "email=<status>" preference token is a silent
// opt-out.
func (d *Dispatcher) requestMessage(p *models.Project, actor *models.Personnel) *message {
	var staff []models.Personnel
	if err := d.DB.Preload("User").Where("role IN ?", []string{"gestion", "direction"}).Find(&staff).Error; err != nil {
		return nil
	}
	var recipients []string
	for _, s := range staff {
		if s.User.HasPreference("email=" + p.Status) {
			recipients = append(recipients, s.Email)
		}
	}

	request := "de validation"
	budget := ""
	if p.Status == "ready-1" {
		request = "d'accord"
		if p.HasBudget() {
			budget = " et inclusion au budget"
		}
	}

	var b strings.Builder
	b.WriteString("Bonjour,\n")
	fmt.Fprintf(&b, "\nUne demande %s%s vient d'être déposée :\n", request, budget)
	fmt.Fprintf(&b, "Auteur : %s (%s)\n", actor.FullName(), actor.Email)
	fmt.Fprintf(&b, "Projet : %s\n", p.Title)
	fmt.Fprintf(&b, "Classes concernées : %s\n", divisions.Names(p.DivisionList(), ", "))
	b.WriteString("\nPour consulter la fiche projet, ajouter un commentaire ou gérer le projet, ")
	fmt.Fprintf(&b, "connectez-vous à l'application Projets LFS :\n%sproject/%d", d.AppWebsite, p.ID)

	return &message{
		recipients: recipients,
		body:       b.String(),
		subject:    fmt.Sprintf("Projets LFS : demande %s%s", request, budget),
	}
}

// resultMessage notifies the project team of the direction's decision.
func (d *Dispatcher) resultMessage(p *models.Project, actor *models.Personnel) *message {
	recipients := d.memberEmails(p)

	var b strings.Builder
	b.WriteString("Bonjour,\n")
	var subject string
	switch p.Status {
	case "validated-1", "validated":
		verdict := "validé"
		budget := ""
		if p.Status == "validated-1" {
			verdict = "approuvé"
			if p.HasBudget() {
				budget = " et inclu au budget"
			}
		}
		fmt.Fprintf(&b, "\nVotre projet :\n%s\na été %s%s.\n", p.Title, verdict, budget)
		prefix := ""
		if p.Status == "validated-1" && p.HasBudget() {
			prefix = "et budget "
		}
		subject = fmt.Sprintf("Projets LFS : projet %s%s", prefix, verdict)
	case "validated-10":
		fmt.Fprintf(&b, "\nVotre projet :\n%s\na été dévalidé. ", p.Title)
		b.WriteString("Vous pouvez le modifier et effectuer une nouvelle demande de validation.\n")
		subject = "Projets LFS : projet dévalidé"
	case "rejected":
		fmt.Fprintf(&b, "\nVotre projet :\n%s\nn'a pas été retenu.\n", p.Title)
		subject = "Projets LFS : projet non retenu"
	default:
		return nil
	}

	b.WriteString("\nPour consulter la fiche projet")
	if p.Status != "validated" && p.Status != "rejected" {
		b.WriteString(", modifier votre projet")
	}
	b.WriteString(" ou ajouter un commentaire, ")
	fmt.Fprintf(&b, "connectez-vous à l'application Projets LFS :\n%sproject/%d", d.AppWebsite, p.ID)

	return &message{recipients: recipients, body: b.String(), subject: subject}
}

// managementMessage is the secondary broadcast to gestion when a project
// reaches validated.
func (d *Dispatcher) managementMessage(p *models.Project, actor *models.Personnel) *message {
	var staff []models.Personnel
	if err := d.DB.Preload("User").Where("role = ?", "gestion").Find(&staff).Error; err != nil {
		return nil
	}
	var recipients []string
	for _, s := range staff {
		if s.User.HasPreference("email=validated") {
			recipients = append(recipients, s.Email)
		}
	}

	var b strings.Builder
	b.WriteString("Bonjour,\n")
	fmt.Fprintf(&b, "\nLe projet :\n%s\nClasses concernées : %s\na été validé.\n",
		p.Title, divisions.Names(p.DivisionList(), ", "))
	b.WriteString("\nPour consulter la fiche projet ou ajouter un commentaire, ")
	fmt.Fprintf(&b, "connectez-vous à l'application Projets LFS :\n%sproject/%d", d.AppWebsite, p.ID)

	return &message{
		recipients: recipients,
		body:       b.String(),
		subject:    "Projets LFS : nouveau projet validé",
	}
}

// commentMessage notifies the marked recipients of a new comment.
func (d *Dispatcher) commentMessage(p *models.Project, actor *models.Personnel, pids []uint, text string) *message {
	var recipients []string
	for _, pid := range pids {
		var personnel models.Personnel
		if err := d.DB.First(&personnel, pid).Error; err == nil {
			recipients = append(recipients, personnel.Email)
		}
	}

	var b strings.Builder
	b.WriteString("Bonjour,\n")
	fmt.Fprintf(&b, "\nUn nouveau commentaire sur le projet \"%s\" a été ajouté par %s (%s) :\n",
		p.Title, actor.FullName(), actor.Email)
	b.WriteString("\n" + text + "\n")
	b.WriteString("\nPour consulter la fiche projet ou ajouter un commentaire, ")
	fmt.Fprintf(&b, "connectez-vous à l'application Projets LFS :\n%sproject/%d", d.AppWebsite, p.ID)

	return &message{
		recipients: recipients,
		body:       b.String(),
		subject:    "Projets LFS : nouveau commentaire",
	}
}

// adminMessage reports an internal error to admin staff.
func (d *Dispatcher) adminMessage(actor *models.Personnel, text string) *message {
	var staff []models.Personnel
	if err := d.DB.Where("role = ?", "admin").Find(&staff).Error; err != nil {
		return nil
	}
	var recipients []string
	for _, s := range staff {
		recipients = append(recipients, s.Email)
	}

	var b strings.Builder
	b.WriteString("Bonjour,\n")
	fmt.Fprintf(&b, "An Internal Server Error occured at %s. User : %s.\n", text, actor.Email)

	return &message{
		recipients: recipients,
		body:       b.String(),
		subject:    "Projets LFS : Internal Server Error",
	}
}

func (d *Dispatcher) memberEmails(p *models.Project) []string {
	var out []string
	for _, m := range p.Members {
		var personnel models.Personnel
		if err := d.DB.First(&personnel, m.PID).Error; err == nil {
			out = append(out, personnel.Email)
		}
	}
	return out
}

// formatAddr renders "Firstname Name <email>" pairs, accents folded.
func (d *Dispatcher) formatAddr(emails []string) string {
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		var personnel models.Personnel
		if err := d.DB.Where("email = ?", email).First(&personnel).Error; err == nil {
			out = append(out, fmt.Sprintf("%s <%s>", RemoveAccents(personnel.FullName()), email))
		} else {
			out = append(out, email)
		}
	}
	return strings.Join(out, ",")
}

func exclude(emails []string, self string) []string {
	var out []string
	seen := map[string]bool{self: true}
	for _, e := range emails {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
