package translate

import (
	"context"

	"go.uber.org/zap"
)

// Language is a language the translator understands.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AppLanguages are the languages the labels can be shown in.
var AppLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pl", Name: "Polish"},
	{Code: "ru", Name: "Russian"},
}

// DefaultTranslationLanguages returns a fresh copy of AppLanguages, used until the
// online list has been fetched.
func DefaultTranslationLanguages() []Language {
	out := make([]Language, len(AppLanguages))
	copy(out, AppLanguages)
	return out
}

// FindLanguage returns the language with the given code.
func FindLanguage(languages []Language, code string) (Language, bool) {
	for _, l := range languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// LanguageLister lists the languages a translation backend supports.
type LanguageLister interface {
	SupportedLanguages(ctx context.Context) ([]Language, error)
}

// LoadLanguages asks lister for its languages once. The defaults are returned when
// lister is nil, fails or answers with an empty list.
func LoadLanguages(ctx context.Context, lister LanguageLister, logger *zap.Logger) []Language {
	if lister == nil {
		return DefaultTranslationLanguages()
	}
	languages, err := lister.SupportedLanguages(ctx)
	if err != nil || len(languages) == 0 {
		if logger != nil {
			logger.Warn("using default translation languages", zap.Error(err))
		}
		return DefaultTranslationLanguages()
	}
	return languages
}
