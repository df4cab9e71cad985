package dataset_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enzo1603/nethz/internal/dataset"
	"github.com/Enzo1603/nethz/internal/errors"
)

func TestLoadCountries_LoadsOnce(t *testing.T) {
	t.Parallel()

	t1, err := dataset.LoadCountries()
	require.NoError(t, err)
	require.NotEmpty(t, t1.All())

	t2, err := dataset.LoadCountries()
	require.NoError(t, err)
	require.Same(t, t1, t2, "second load should return the cached table")
}

func TestCountries_SampleFiltered(t *testing.T) {
	t.Parallel()

	countries, err := dataset.LoadCountries()
	require.NoError(t, err)

	tests := map[string]struct {
		region string
		field  dataset.Field

		wantErrCode errors.Code
	}{
		"europe capitals":               {region: "europe", field: dataset.FieldCapital},
		"region match case-insensitive": {region: "EuRoPe", field: dataset.FieldCapital},
		"africa languages":              {region: "africa", field: dataset.FieldLanguages},
		"americas currencies":           {region: "americas", field: dataset.FieldCurrencies},
		"worldwide matches any region":  {region: "worldwide", field: dataset.FieldCapital},
		"unknown region":                {region: "atlantis", field: dataset.FieldCapital, wantErrCode: errors.CodeNotFound},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Sampling is random, so check the invariants over repeated draws.
			for i := 0; i < 50; i++ {
				c, err := countries.SampleFiltered(tt.region, tt.field)

				if tt.wantErrCode != 0 {
					require.Error(t, err)
					require.True(t, errors.IsCode(err, tt.wantErrCode), "unexpected error: %v", err)
					return
				}

				require.NoError(t, err)
				assert.NotEmpty(t, dataset.FieldValue(c, tt.field))
				if tt.region != dataset.DefaultRegion {
					assert.True(t, strings.EqualFold(c.Region, tt.region),
						"region %q should match requested %q", c.Region, tt.region)
				}
			}
		})
	}
}

func TestCountries_SampleN_Exhausted(t *testing.T) {
	t.Parallel()

	countries, err := dataset.LoadCountries()
	require.NoError(t, err)

	_, err = countries.SampleN(dataset.DefaultRegion, len(countries.All())+1, dataset.FieldCapital)
	require.Error(t, err)
	require.True(t, errors.IsCode(err, errors.CodeExhausted), "unexpected error: %v", err)
}

func TestCountries_SampleN(t *testing.T) {
	t.Parallel()

	countries, err := dataset.LoadCountries()
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		sample, err := countries.SampleN(dataset.DefaultRegion, 2, dataset.FieldArea)
		require.NoError(t, err)
		require.Len(t, sample, 2)

		assert.NotEqual(t, sample[0].CCA3, sample[1].CCA3, "draw should be without replacement")
		for _, c := range sample {
			assert.True(t, c.Area.IsPositive(), "%s: area must be > 0", c.CCA3)
		}
	}
}

func TestCountries_SampleN_AreaExcludesZero(t *testing.T) {
	t.Parallel()

	countries, err := dataset.LoadCountries()
	require.NoError(t, err)

	var withArea int
	for _, c := range countries.All() {
		if c.Area.IsPositive() {
			withArea++
		}
	}

	sample, err := countries.SampleN(dataset.DefaultRegion, withArea, dataset.FieldArea)
	require.NoError(t, err)
	require.Len(t, sample, withArea)

	_, err = countries.SampleN(dataset.DefaultRegion, withArea+1, dataset.FieldArea)
	require.Error(t, err)
}

func TestValidRegion(t *testing.T) {
	t.Parallel()

	for _, region := range []string{"africa", "americas", "antarctic", "asia", "europe", "oceania", "worldwide", "Europe", " asia "} {
		assert.True(t, dataset.ValidRegion(region), region)
	}

	for _, region := range []string{"", "atlantis", "world"} {
		assert.False(t, dataset.ValidRegion(region), region)
	}
}
