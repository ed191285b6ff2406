// Package translate - Label translation through an offline dictionary and the Lingva API.
package translate

import (
	"context"

	"github.com/pkg/errors"
)

// ErrEmptyText is returned when there is nothing to translate.
var ErrEmptyText = errors.New("text to translate is empty")

// Pronunciation holds the transliterations returned with a translation.
type Pronunciation struct {
	Query       *string `json:"query,omitempty"`
	Translation *string `json:"translation,omitempty"`
}

// DefinitionDetail is one meaning of the translated word.
type DefinitionDetail struct {
	Definition *string  `json:"definition,omitempty"`
	Example    *string  `json:"example,omitempty"`
	Synonyms   []string `json:"synonyms,omitempty"`
}

// Definition groups the meanings of one part of speech.
type Definition struct {
	List []DefinitionDetail `json:"list,omitempty"`
}

// Info carries the optional extras of a translation.
type Info struct {
	Pronunciation Pronunciation `json:"pronunciation"`
	Definitions   []Definition  `json:"definitions,omitempty"`
}

// TranslationResponse is the result of translating one text.
type TranslationResponse struct {
	Translation string `json:"translation"`
	Info        *Info  `json:"info,omitempty"`
}

// Translator translates text between two languages.
type Translator interface {
	Translate(ctx context.Context, source, target, text string) (*TranslationResponse, error)
}
