package translate

import (
	"context"

	"go.uber.org/zap"

	"github.com/nvr-ai/lingolens/monitor"
)

// DefaultSourceLanguage is the language of the model's label table.
const DefaultSourceLanguage = "en"

// LabelTranslator translates detection labels, preferring the offline dictionary
// and falling back to an online Translator.
type LabelTranslator struct {
	dict    *Dictionary
	online  Translator
	source  string
	logger  *zap.Logger
	metrics *monitor.Metrics
}

// NewLabelTranslator creates a LabelTranslator. Both dict and online may be nil.
func NewLabelTranslator(dict *Dictionary, online Translator, logger *zap.Logger, metrics *monitor.Metrics) *LabelTranslator {
	if logger == nil {
		logger = zap.L()
	}
	return &LabelTranslator{
		dict:    dict,
		online:  online,
		source:  DefaultSourceLanguage,
		logger:  logger,
		metrics: metrics,
	}
}

// Online returns the online translator, which may be nil.
func (t *LabelTranslator) Online() Translator {
	return t.online
}

// TranslateLabel returns label in the target language.
//
// The label itself is returned for the source language, and when neither the
// dictionary nor the online translator has an answer.
func (t *LabelTranslator) TranslateLabel(ctx context.Context, label, target string) string {
	if target == "" || target == t.source {
		return label
	}
	if translated, ok := t.dict.Lookup(label, target); ok {
		return translated
	}
	if t.online == nil {
		return label
	}

	resp, err := t.online.Translate(ctx, t.source, target, label)
	if err != nil {
		t.metrics.ObserveTranslateError()
		t.logger.Warn("online translation failed",
			zap.String("label", label),
			zap.String("target", target),
			zap.Error(err),
		)
		return label
	}
	if resp.Translation == "" {
		return label
	}
	return resp.Translation
}
