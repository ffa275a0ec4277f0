// Package catalog holds the school's fixed classification vocabulary: the
// axes and priorities of the projet d'établissement, departments, paths,
// skills and the other closed choice lists shared by the workflow and the
// reporting engine.
package catalog

// Axes of the projet d'établissement, in display order.
var Axes = []string{
	"Lycée international",
	"Bien être",
	"École responsable (E3D) et entreprenante",
	"Communauté innovante et apprenante",
}

// Priorities per axis, in display order. The axis of a project is always
// derivable from its priority.
var Priorities = map[string][]string{
	"Lycée international": {
		"Valoriser les parcours multilingues et multiculturels dans le contexte d'un établissement français à l'étranger",
		"S'ouvrir au pays d'accueil et à l'international",
	},
	"Bien être": {
		"Accueillir, accompagner, aider",
		"Optimiser les lieux et les temps scolaires pour un cadre de vie et de travail serein et apaisé",
		"Communiquer sereinement et efficacement pour une cohésion renforcée",
	},
	"École responsable (E3D) et entreprenante": {
		"Éduquer aux problématiques du monde d'aujourd'hui, E3D",
		"Favoriser, encourager et valoriser les projets et échanges",
		"Accompagner vers la réussite et l'excellence",
	},
	"Communauté innovante et apprenante": {
		"Accompagner et valoriser le développement professionnel du personnel",
		"Éduquer aux compétences du XXIe siècle : créativité, esprit critique, communication, coopération",
		"Développer des parcours éducatifs variés pour une offre éducative plus riche",
	},
}

// AxisOf returns the axis a priority belongs to, or "" when unknown.
func AxisOf(priority string) string {
	for _, axis := range Axes {
		for _, p := range Priorities[axis] {
			if p == priority {
				return axis
			}
		}
	}
	return ""
}

// ValidPriority reports whether the priority belongs to the catalog.
func ValidPriority(priority string) bool { return AxisOf(priority) != "" }

var Departments = []string{
	"Arts et Lettres",
	"Langues",
	"Mathématiques NSI",
	"Sciences",
	"Sciences humaines",
	"Sport",
	"Élémentaire",
	"Maternelle",
}

// SecondaryDepartments are the departments teaching in the secondary section.
var SecondaryDepartments = []string{
	"Arts et Lettres",
	"Langues",
	"Mathématiques NSI",
	"Sciences",
	"Sciences humaines",
	"Sport",
}

var Paths = []string{"Avenir", "Artistique / Culturel", "Santé", "Citoyen"}

var Skills = []string{
	"Créativité",
	"Pensée critique",
	"Responsabilité",
	"Coopération",
	"Communication",
}

var Modes = []string{"Individuel", "En groupe"}

// Requirement values: toute la classe ou volontaires seulement.
var Requirements = []struct{ Value, Label string }{
	{"yes", "Toute la classe"},
	{"no", "Participation optionnelle"},
}

// Location values.
var Locations = []struct{ Value, Label string }{
	{"in", "En classe"},
	{"out", "Hors classe, dans l'établissement"},
	{"outer", "Sortie scolaire"},
	{"trip", "Voyage scolaire"},
}

// Roles with elevated permissions, in display order.
var Roles = []string{"direction", "gestion", "admin"}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func ValidDepartment(d string) bool { return contains(Departments, d) }
func ValidPath(p string) bool       { return contains(Paths, p) }
func ValidSkill(s string) bool      { return contains(Skills, s) }
func ValidMode(m string) bool       { return contains(Modes, m) }

func ValidRequirement(r string) bool {
	for _, c := range Requirements {
		if c.Value == r {
			return true
		}
	}
	return false
}

func ValidLocation(l string) bool {
	for _, c := range Locations {
		if c.Value == l {
			return true
		}
	}
	return false
}
