// Package location models the administrative-unit hierarchy registration
// offices hang off of. The registration-number generator walks this
// hierarchy to build jurisdiction codes.
package location

// Kind is the administrative level of a location.
type Kind string

const (
	KindDistrict Kind = "DISTRICT"
	KindUpazila  Kind = "UPAZILA"
	KindUnion    Kind = "UNION"
	KindOffice   Kind = "CRVS_OFFICE"
)

// JurisdictionLevels is the fixed order jurisdiction codes are concatenated
// in when building a registration number.
var JurisdictionLevels = []Kind{KindDistrict, KindUpazila, KindUnion}

// Location is one node in the administrative hierarchy. PartOf points at the
// parent location; the chain terminates at a location with an empty PartOf.
type Location struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Code   string `json:"code,omitempty"`
	PartOf string `json:"partOf,omitempty"`
}
