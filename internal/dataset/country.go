// Package dataset provides the process-wide, read-only country and currency
// tables backed by embedded CSV snapshots. Both tables are parsed exactly once
// and shared between all readers; the process must be restarted to pick up
// data changes.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
)

//go:embed data/countries.csv
var countriesCSV []byte

// DefaultRegion is the sentinel region matching every record.
const DefaultRegion = "worldwide"

var validRegions = map[string]struct{}{
	"africa":      {},
	"americas":    {},
	"antarctic":   {},
	"asia":        {},
	"europe":      {},
	"oceania":     {},
	DefaultRegion: {},
}

// ValidRegion reports whether region names a supported region (case-insensitive).
func ValidRegion(region string) bool {
	_, ok := validRegions[strings.ToLower(strings.TrimSpace(region))]
	return ok
}

// Field selects one answer-bearing column of a country record.
type Field string

const (
	FieldCapital    Field = "capital"
	FieldCurrencies Field = "currencies"
	FieldLanguages  Field = "languages"
	FieldArea       Field = "area"
)

// FieldValue returns the raw (comma-joined) value of the field on c.
func FieldValue(c domain.Country, f Field) string {
	switch f {
	case FieldCapital:
		return c.Capitals
	case FieldCurrencies:
		return c.Currencies
	case FieldLanguages:
		return c.Languages
	case FieldArea:
		if c.Area.IsZero() {
			return ""
		}
		return c.Area.String()
	}
	return ""
}

// Countries is the loaded country table.
type Countries struct {
	records []domain.Country
}

var (
	countriesOnce sync.Once
	countries     *Countries
	countriesErr  error
)

// LoadCountries parses the embedded country CSV on first call and returns the
// cached table on every subsequent call.
func LoadCountries() (*Countries, error) {
	countriesOnce.Do(func() {
		records, err := parseCountries(bytes.NewReader(countriesCSV))
		if err != nil {
			countriesErr = fmt.Errorf("dataset: parse countries: %w", err)
			return
		}
		countries = &Countries{records: records}
	})

	return countries, countriesErr
}

func parseCountries(r io.Reader) ([]domain.Country, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"name.common", "cca3", "region", "capital", "currencies", "languages", "area"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var records []domain.Country
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		c := domain.Country{
			CommonName: strings.TrimSpace(row[col["name.common"]]),
			CCA3:       strings.TrimSpace(row[col["cca3"]]),
			Region:     strings.TrimSpace(row[col["region"]]),
			Capitals:   strings.TrimSpace(row[col["capital"]]),
			Currencies: strings.TrimSpace(row[col["currencies"]]),
			Languages:  strings.TrimSpace(row[col["languages"]]),
		}

		if s := strings.TrimSpace(row[col["area"]]); s != "" {
			area, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("country %s: invalid area %q: %w", c.CCA3, s, err)
			}
			c.Area = area
		}

		records = append(records, c)
	}

	return records, nil
}

// All returns the full ordered record sequence. Callers must not mutate it.
func (t *Countries) All() []domain.Country {
	return t.records
}

// SampleFiltered returns one uniformly-random record whose region matches the
// requested region (any region for the worldwide sentinel) and whose field is
// non-empty.
func (t *Countries) SampleFiltered(region string, f Field) (domain.Country, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if !ValidRegion(region) {
		return domain.Country{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown region %q", region))
	}

	var pool []domain.Country
	for _, c := range t.records {
		if region != DefaultRegion && !strings.EqualFold(strings.TrimSpace(c.Region), region) {
			continue
		}
		if FieldValue(c, f) == "" {
			continue
		}
		pool = append(pool, c)
	}

	if len(pool) == 0 {
		return domain.Country{}, errors.New(errors.CodeExhausted,
			errors.WithMessagef("no records with non-empty %s in region %q", f, region))
	}

	return pool[rand.IntN(len(pool))], nil
}

// SampleN draws n records without replacement from the records of the given
// region (any region for the worldwide sentinel) whose given fields are all
// non-empty. The area field additionally requires area > 0.
func (t *Countries) SampleN(region string, n int, fields ...Field) ([]domain.Country, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if !ValidRegion(region) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown region %q", region))
	}

	var pool []domain.Country
	for _, c := range t.records {
		if region != DefaultRegion && !strings.EqualFold(strings.TrimSpace(c.Region), region) {
			continue
		}
		if qualifies(c, fields) {
			pool = append(pool, c)
		}
	}

	if len(pool) < n {
		return nil, errors.New(errors.CodeExhausted,
			errors.WithMessagef("requested %d records, only %d qualify", n, len(pool)))
	}

	sample := make([]domain.Country, 0, n)
	for _, i := range rand.Perm(len(pool))[:n] {
		sample = append(sample, pool[i])
	}

	return sample, nil
}

func qualifies(c domain.Country, fields []Field) bool {
	for _, f := range fields {
		if FieldValue(c, f) == "" {
			return false
		}
		if f == FieldArea && !c.Area.IsPositive() {
			return false
		}
	}
	return true
}
