package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
)

//go:embed data/currency-codes.csv
var currenciesCSV []byte

// CurrencyCodes maps ISO 4217 alphabetic codes to display names.
type CurrencyCodes struct {
	byCode map[string]string
}

var (
	currenciesOnce sync.Once
	currencyCodes  *CurrencyCodes
	currenciesErr  error
)

// LoadCurrencyCodes parses the embedded currency CSV on first call and returns
// the cached table on every subsequent call.
func LoadCurrencyCodes() (*CurrencyCodes, error) {
	currenciesOnce.Do(func() {
		byCode, err := parseCurrencyCodes(bytes.NewReader(currenciesCSV))
		if err != nil {
			currenciesErr = fmt.Errorf("dataset: parse currency codes: %w", err)
			return
		}
		currencyCodes = &CurrencyCodes{byCode: byCode}
	})

	return currencyCodes, currenciesErr
}

func parseCurrencyCodes(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || header[0] != "AlphabeticCode" || header[1] != "Currency" {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	byCode := make(map[string]string)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		code := strings.ToLower(strings.TrimSpace(row[0]))
		if code == "" {
			continue
		}
		byCode[code] = strings.TrimSpace(row[1])
	}

	return byCode, nil
}

// Name returns the display name for an alphabetic currency code, or an empty
// string when the code is unknown. Lookup is case-insensitive and never fails.
func (t *CurrencyCodes) Name(code string) string {
	return t.byCode[strings.ToLower(strings.TrimSpace(code))]
}
