package ontology

import (
	"regexp"
	"strings"

	"github.com/larderlab/larder/pkg/errors"
)

// Namespace prefixes for authored entity ids. Family ids carry no prefix:
// they are upper-snake labels (e.g. "DAIRY_YOGURT") so they can be embedded
// in TPT ids without an extra separator level.
const (
	TaxonPrefix     = "tx:"
	PartPrefix      = "part:"
	TransformPrefix = "tf:"
	TPTPrefix       = "tpt:"
)

// segmentRe matches one legal id segment: lowercase alphanumerics and
// underscores, starting with a letter.
var segmentRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// familyRe matches a family id: upper-snake, starting with a letter.
var familyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidateTaxonID checks that id is a well-formed path-encoded taxon id.
// Every colon-separated segment after the "tx:" prefix must match the
// restricted segment character set.
func ValidateTaxonID(id string) error {
	rest, ok := strings.CutPrefix(id, TaxonPrefix)
	if !ok || rest == "" {
		return errors.New(errors.CodeInvalidID, "taxon id %q must start with %q", id, TaxonPrefix)
	}
	for _, seg := range strings.Split(rest, ":") {
		if !segmentRe.MatchString(seg) {
			return errors.New(errors.CodeInvalidID, "taxon id %q has illegal segment %q", id, seg)
		}
	}
	return nil
}

// TaxonSegments returns the path segments of a taxon id, without the prefix.
// Returns nil for malformed ids.
func TaxonSegments(id string) []string {
	rest, ok := strings.CutPrefix(id, TaxonPrefix)
	if !ok || rest == "" {
		return nil
	}
	return strings.Split(rest, ":")
}

// TaxonKingdom returns the kingdom segment of a taxon id ("animalia",
// "plantae", ...) or empty string for malformed ids.
func TaxonKingdom(id string) string {
	segs := TaxonSegments(id)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// ValidatePartID checks that id is a well-formed single-segment part id.
func ValidatePartID(id string) error {
	return validateFlatID(id, PartPrefix, "part")
}

// ValidateTransformID checks that id is a well-formed single-segment transform id.
func ValidateTransformID(id string) error {
	return validateFlatID(id, TransformPrefix, "transform")
}

func validateFlatID(id, prefix, kind string) error {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || rest == "" {
		return errors.New(errors.CodeInvalidID, "%s id %q must start with %q", kind, id, prefix)
	}
	if !segmentRe.MatchString(rest) {
		return errors.New(errors.CodeInvalidID, "%s id %q has illegal characters", kind, id)
	}
	return nil
}

// ValidateFamilyID checks that id is a well-formed upper-snake family id.
func ValidateFamilyID(id string) error {
	if !familyRe.MatchString(id) {
		return errors.New(errors.CodeInvalidID, "family id %q must be upper-snake (e.g. DAIRY_YOGURT)", id)
	}
	return nil
}

// TPTID composes the terminal identity record id from its components.
// An empty family maps to the "unknown" segment.
func TPTID(taxon, part, family, hash string) string {
	if family == "" {
		family = UnknownFamily
	}
	return TPTPrefix + taxon + ":" + part + ":" + family + ":" + hash
}
