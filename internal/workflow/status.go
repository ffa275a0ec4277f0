package workflow

// Status is the project validation state. The set is closed; transitions not
// present in the tables below are rejected.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusReady1      Status = "ready-1"     // demande d'accord (et budget)
	StatusReady       Status = "ready"       // demande de validation finale
	StatusValidated1  Status = "validated-1" // accord de la direction
	StatusValidated   Status = "validated"
	StatusValidated10 Status = "validated-10" // dévalidé, éditable à nouveau
	StatusRejected    Status = "rejected"

	// StatusAdjust is a UI-only placeholder meaning "resubmit without
	// changing status". It is translated back to the previous persisted
	// status before storage and never written as a literal value.
	StatusAdjust Status = "adjust"
)

// Known reports membership in the closed persisted set.
func (s Status) Known() bool {
	switch s {
	case StatusDraft, StatusReady1, StatusReady, StatusValidated1,
		StatusValidated, StatusValidated10, StatusRejected:
		return true
	}
	return false
}

// Editable reports whether members may still edit a project in this state.
// Only validated projects are frozen (until explicit devalidation).
func (s Status) Editable() bool { return s != StatusValidated }

// Pending reports a validation request awaiting direction.
func (s Status) Pending() bool { return s == StatusReady1 || s == StatusReady }

// submitTargets lists the statuses a creator/member may request when saving
// a project, per previous persisted status ("" = new project).
var submitTargets = map[Status][]Status{
	"":                {StatusDraft, StatusReady1, StatusReady},
	StatusDraft:       {StatusDraft, StatusReady1, StatusReady},
	StatusReady1:      {StatusDraft, StatusReady1, StatusReady},
	StatusReady:       {StatusReady},
	StatusValidated1:  {StatusValidated1, StatusReady},
	StatusValidated10: {StatusValidated10, StatusReady1, StatusReady},
	StatusRejected:    {StatusRejected, StatusReady},
}

// CanSubmit reports whether a save may move a project from prev to next.
func CanSubmit(prev, next Status) bool {
	for _, t := range submitTargets[prev] {
		if t == next {
			return true
		}
	}
	return false
}

// decisionTable maps direction decisions: review states to their outcome.
var decisionTable = map[Status]Status{
	StatusReady1: StatusValidated1,
	StatusReady:  StatusValidated,
}

// Rank orders statuses along the validation pipeline, for listings.
func (s Status) Rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusReady1:
		return 1
	case StatusValidated1, StatusValidated10:
		return 2
	case StatusReady:
		return 3
	case StatusValidated:
		return 4
	case StatusRejected:
		return 5
	}
	return -1
}
