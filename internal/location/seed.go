package location

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a JSON array of locations, the format deployments seed the
// hierarchy from.
func LoadFile(path string) ([]Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}
	var locations []Location
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}
	return locations, nil
}

// DevSeed is the hierarchy the in-memory resolver falls back to when no
// locations file is configured, so registration works out of the box in
// single-node development mode.
func DevSeed() []Location {
	return []Location{
		{ID: "dev-district", Name: "Dev District", Kind: KindDistrict, Code: "10"},
		{ID: "dev-upazila", Name: "Dev Upazila", Kind: KindUpazila, Code: "24", PartOf: "dev-district"},
		{ID: "dev-union", Name: "Dev Union", Kind: KindUnion, Code: "07", PartOf: "dev-upazila"},
		{ID: "dev-office", Name: "Dev CRVS Office", Kind: KindOffice, PartOf: "dev-union"},
	}
}
