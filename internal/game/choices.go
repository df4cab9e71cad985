package game

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/Enzo1603/nethz/internal/dataset"
	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
)

// maxDrawRetries bounds the rejection-sampling loop when a draw accidentally
// contains the excluded answer. With the data set sizes in play a retry is
// already rare; hitting the bound means the pool is too small for the request.
const maxDrawRetries = 100

// Normalize lowercases s, trims it and collapses runs of whitespace, so that
// "Ulan  Bator " and "ulan bator" compare equal.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Flatten splits the comma-separated field of c into normalized, non-empty
// tokens. Some countries have several capitals, currencies or languages; any
// one of them counts as a correct answer.
func Flatten(c domain.Country, f dataset.Field) []string {
	var tokens []string
	for _, part := range strings.Split(dataset.FieldValue(c, f), ",") {
		if t := Normalize(part); t != "" {
			tokens = append(tokens, t)
		}
	}

	return tokens
}

// RandomItemsExcluding flattens the field across the whole data set into one
// token pool and draws count tokens without replacement, none of which equal
// exclude. A draw containing exclude is fully retried, not patched item by item.
func RandomItemsExcluding(countries *dataset.Countries, f dataset.Field, exclude string, count int) ([]string, error) {
	// Dedupe the pool so "without replacement" really means distinct tokens;
	// common languages and currencies appear on many records.
	seen := make(map[string]struct{})
	var pool []string
	for _, c := range countries.All() {
		for _, t := range Flatten(c, f) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			pool = append(pool, t)
		}
	}

	if count > len(pool) {
		return nil, errors.New(errors.CodeExhausted,
			errors.WithMessagef("requested %d %s tokens, pool has %d", count, f, len(pool)))
	}

	exclude = Normalize(exclude)
	for retry := 0; retry < maxDrawRetries; retry++ {
		draw := make([]string, 0, count)
		for _, i := range rand.Perm(len(pool))[:count] {
			draw = append(draw, pool[i])
		}

		if !slices.Contains(draw, exclude) {
			return draw, nil
		}
	}

	return nil, errors.New(errors.CodeExhausted,
		errors.WithMessagef("could not draw %d %s tokens excluding %q", count, f, exclude))
}

// BuildChoices produces count labelled answer options: count-1 distractors
// drawn from the data set plus the correct answer, shuffled. Exactly one
// option equals the correct answer; distractors are distinct by construction.
func BuildChoices(countries *dataset.Countries, correct string, f dataset.Field, count int) (map[string]string, error) {
	distractors, err := RandomItemsExcluding(countries, f, correct, count-1)
	if err != nil {
		return nil, err
	}

	options := append(distractors, Normalize(correct))
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	choices := make(map[string]string, len(options))
	for i, option := range options {
		choices[string(rune('A'+i))] = option
	}

	return choices, nil
}
