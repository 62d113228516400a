package ontology

// Rank ladders per kingdom. A child taxon's rank must be the immediate
// successor of its parent's rank in the kingdom's ladder; skipped ranks are
// a validation error. Kingdom roots sit at ladder position zero.
var rankLadders = map[string][]string{
	"animalia": {"kingdom", "phylum", "class", "order", "family", "genus", "species", "subspecies"},
	"plantae":  {"kingdom", "phylum", "class", "order", "family", "genus", "species", "variety"},
	"fungi":    {"kingdom", "phylum", "class", "order", "family", "genus", "species", "strain"},
}

// Kingdoms returns the known kingdom segments.
func Kingdoms() []string {
	return []string{"animalia", "fungi", "plantae"}
}

// KnownKingdom reports whether the kingdom has a declared rank ladder.
func KnownKingdom(kingdom string) bool {
	_, ok := rankLadders[kingdom]
	return ok
}

// RankIndex returns the position of rank in the kingdom's ladder, or -1 if
// the kingdom or rank is unknown.
func RankIndex(kingdom, rank string) int {
	for i, r := range rankLadders[kingdom] {
		if r == rank {
			return i
		}
	}
	return -1
}

// NextRank returns the rank that must follow parentRank in the kingdom's
// ladder, or false when parentRank is terminal or unknown.
func NextRank(kingdom, parentRank string) (string, bool) {
	ladder := rankLadders[kingdom]
	for i, r := range ladder {
		if r == parentRank && i+1 < len(ladder) {
			return ladder[i+1], true
		}
	}
	return "", false
}
