package regnumber

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"civreg/internal/location"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

func testLocations() *location.InMemory {
	return location.NewInMemory(
		location.Location{ID: "district-10", Kind: location.KindDistrict, Code: "10"},
		location.Location{ID: "upazila-24", Kind: location.KindUpazila, Code: "24", PartOf: "district-10"},
		location.Location{ID: "union-07", Kind: location.KindUnion, Code: "07", PartOf: "upazila-24"},
		location.Location{ID: "office-1", Kind: location.KindOffice, PartOf: "union-07"},
		location.Location{ID: "office-hq", Kind: location.KindOffice, PartOf: "district-10"},
	)
}

func TestGenerate(t *testing.T) {
	gen := NewGenerator(testLocations())
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	t.Run("full jurisdiction chain", func(t *testing.T) {
		number, err := gen.Generate(ctx, "office-1", "123456")
		require.NoError(t, err)
		require.Equal(t, "2026"+"102407"+"123456", number[:len(number)-1])
		require.True(t, Validate(number))
	})

	t.Run("unresolved levels contribute empty strings", func(t *testing.T) {
		// office-hq reports directly to the district; upazila and union are
		// absent from its chain.
		number, err := gen.Generate(ctx, "office-hq", "123456")
		require.NoError(t, err)
		require.Equal(t, "2026"+"10"+"123456", number[:len(number)-1])
		require.True(t, Validate(number))
	})

	t.Run("deterministic given identical inputs", func(t *testing.T) {
		first, err := gen.Generate(ctx, "office-1", "900001")
		require.NoError(t, err)
		second, err := gen.Generate(ctx, "office-1", "900001")
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("empty paper form id draws a fresh random component", func(t *testing.T) {
		first, err := gen.Generate(ctx, "office-1", "")
		require.NoError(t, err)
		second, err := gen.Generate(ctx, "office-1", "")
		require.NoError(t, err)
		require.NotEqual(t, first, second)
	})

	t.Run("format property", func(t *testing.T) {
		// ^\d{4} + jurisdiction code + paper form id + one check digit.
		pattern := regexp.MustCompile(`^\d{4}102407\d{8}\d$`)
		for i := 0; i < 20; i++ {
			number, err := gen.Generate(ctx, "office-1", "")
			require.NoError(t, err)
			require.Regexp(t, pattern, number)
			require.True(t, Validate(number))
		}
	})

	t.Run("unknown office", func(t *testing.T) {
		_, err := gen.Generate(ctx, "office-404", "123456")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestVerhoeff(t *testing.T) {
	t.Run("known vector", func(t *testing.T) {
		require.Equal(t, 3, CheckDigit("236"))
		require.True(t, Validate("2363"))
		require.False(t, Validate("2364"))
	})

	t.Run("detects single digit errors", func(t *testing.T) {
		base := "20261024071234567"
		digit := CheckDigit(base)
		full := base + string(rune('0'+digit))
		require.True(t, Validate(full))

		mutated := []byte(full)
		mutated[5] = '9' // was '2'
		require.False(t, Validate(string(mutated)))
	})

	t.Run("detects adjacent transpositions", func(t *testing.T) {
		base := "2026123456"
		full := base + string(rune('0'+CheckDigit(base)))
		swapped := []byte(full)
		swapped[4], swapped[5] = swapped[5], swapped[4] // '1' <-> '2'
		require.False(t, Validate(string(swapped)))
	})
}
