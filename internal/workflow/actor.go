package workflow

import "github.com/nxpat/projets-lfs/internal/models"

// Actor is the resolved current user: authentication identity plus staff
// directory entry and role. The core never authenticates; it receives the
// actor from the session layer.
type Actor struct {
	User      models.User
	Personnel models.Personnel
}

func (a Actor) Role() string       { return a.Personnel.Role }
func (a Actor) IsDirection() bool  { return a.Personnel.Role == "direction" }
func (a Actor) IsAdmin() bool      { return a.Personnel.Role == "admin" }
func (a Actor) IsManagement() bool { return a.Personnel.IsManagement() }

// CanEdit reports whether the actor belongs to the project team.
// Members must be preloaded on the project.
func (a Actor) CanEdit(p *models.Project) bool {
	return a.User.ID == p.UID || p.HasMember(a.Personnel.ID)
}

// CanView mirrors the fiche-projet access rule: team members and management
// always, everyone else once the project left the draft/first-request states.
func (a Actor) CanView(p *models.Project) bool {
	if a.CanEdit(p) || a.IsManagement() {
		return true
	}
	s := Status(p.Status)
	return s != StatusDraft && s != StatusReady1
}
