// Package pairs draws random adjacent-letter pairs from a word.
package pairs

import (
	"fmt"
	"math/rand/v2"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/keyhash/internal/apperr"
)

// Draws is how many pairs Sample always returns.
const Draws = 3

// Sample returns Draws pairs chosen uniformly, with replacement, from the
// adjacent letter pairs of word. Words shorter than two letters yield Draws
// empty strings. word must consist of ASCII letters only.
func Sample(word string, rng *rand.Rand) ([]string, error) {
	if err := validation.Validate(word, is.Alpha); err != nil {
		return nil, fmt.Errorf("pairs: %q: %w: %w", word, apperr.ErrInvalidInput, err)
	}
	out := make([]string, Draws)
	if len(word) < 2 {
		return out, nil
	}
	all := Adjacent(word)
	for i := range out {
		if rng != nil {
			out[i] = all[rng.IntN(len(all))]
		} else {
			out[i] = all[rand.IntN(len(all))]
		}
	}
	return out, nil
}

// Adjacent lists every adjacent pair of word in order.
func Adjacent(word string) []string {
	if len(word) < 2 {
		return nil
	}
	out := make([]string, 0, len(word)-1)
	for i := 0; i+1 < len(word); i++ {
		out = append(out, word[i:i+2])
	}
	return out
}
