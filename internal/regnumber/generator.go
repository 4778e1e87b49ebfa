// Package regnumber builds the checksum-qualified official number assigned
// to a record on registration.
package regnumber

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"civreg/internal/location"
	"civreg/pkg/requestcontext"
)

// paperFormDigits is the width of the generated form id when the paper form
// number is unknown. Regeneration after a store conflict draws a fresh one,
// which is what makes the resubmitted number distinct.
const paperFormDigits = 8

// Generator produces registration numbers of the form
//
//	year(4) + jurisdictionCode + paperFormID + Verhoeff digit
//
// The jurisdiction code concatenates the administrative-unit codes of the
// registering office's hierarchy in the fixed district→upazila→union order,
// an unresolved level contributing an empty string. Uniqueness is enforced
// by the record store, not here.
type Generator struct {
	locations location.Resolver
	levels    []location.Kind
}

func NewGenerator(locations location.Resolver) *Generator {
	return &Generator{locations: locations, levels: location.JurisdictionLevels}
}

// Generate builds a registration number for the given registering office.
// An empty paperFormID draws a random form id. The year component comes from
// the request clock, so output is deterministic under requestcontext.WithTime.
func (g *Generator) Generate(ctx context.Context, officeLocationID, paperFormID string) (string, error) {
	hierarchy, err := g.locations.Hierarchy(ctx, officeLocationID)
	if err != nil {
		return "", fmt.Errorf("resolve jurisdiction for %s: %w", officeLocationID, err)
	}

	var code strings.Builder
	for _, level := range g.levels {
		code.WriteString(codeForLevel(hierarchy, level))
	}

	if paperFormID == "" {
		paperFormID = randomFormID()
	}

	year := requestcontext.Now(ctx).Format("2006")
	body := year + code.String() + paperFormID
	return body + strconv.Itoa(CheckDigit(body)), nil
}

func codeForLevel(hierarchy []location.Location, level location.Kind) string {
	for _, loc := range hierarchy {
		if loc.Kind == level {
			return loc.Code
		}
	}
	return ""
}

func randomFormID() string {
	var b strings.Builder
	for i := 0; i < paperFormDigits; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}
