package directory

import (
	"strings"

	"github.com/joshuakim/propedge/internal/models"
)

// Index is the static lookup of known players and teams, loaded once at
// startup and read-only afterwards.
//
// Lookups use case-insensitive substring containment with first-match-wins in
// provider-supplied order. Ambiguous fragments ("james") therefore resolve to
// whichever matching entry the provider listed first; this is a documented
// limitation of the matching policy, not a defect.
type Index struct {
	players []models.Player
	teams   []models.Team
}

// New builds an index over the provider-supplied directories.
func New(players []models.Player, teams []models.Team) *Index {
	return &Index{players: players, teams: teams}
}

// FindPlayer resolves a name fragment to a player. The fragment matches if it
// is contained anywhere in the full name, ignoring case.
func (idx *Index) FindPlayer(fragment string) (models.Player, bool) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return models.Player{}, false
	}
	for _, p := range idx.players {
		if strings.Contains(strings.ToLower(p.FullName), needle) {
			return p, true
		}
	}
	return models.Player{}, false
}

// FindTeam resolves a team abbreviation, ignoring case.
func (idx *Index) FindTeam(abbreviation string) (models.Team, bool) {
	needle := strings.ToUpper(strings.TrimSpace(abbreviation))
	if needle == "" {
		return models.Team{}, false
	}
	for _, t := range idx.teams {
		if strings.ToUpper(t.Abbreviation) == needle {
			return t, true
		}
	}
	return models.Team{}, false
}

// PlayerCount returns the number of indexed players.
func (idx *Index) PlayerCount() int { return len(idx.players) }

// TeamCount returns the number of indexed teams.
func (idx *Index) TeamCount() int { return len(idx.teams) }
