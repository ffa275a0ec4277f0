package workflow

import "errors"

// Recoverable conditions surfaced to the user as inline messages; handlers
// return to the listing, never a server error.
var (
	ErrLocked            = errors.New("la modification des projets n'est plus possible")
	ErrForbidden         = errors.New("accès non autorisé à ce projet")
	ErrNotFound          = errors.New("le projet demandé n'existe pas ou a été supprimé")
	ErrValidated         = errors.New("ce projet a déjà été validé, la modification est impossible")
	ErrInvalidTransition = errors.New("transition de statut non autorisée")
	ErrInvalidInput      = errors.New("données du projet invalides")
)
