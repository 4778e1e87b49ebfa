package location

import "context"

// Resolver looks up the administrative chain for a location. Hierarchy
// returns the location itself followed by its ancestors, leaf first.
type Resolver interface {
	Hierarchy(ctx context.Context, locationID string) ([]Location, error)
}
