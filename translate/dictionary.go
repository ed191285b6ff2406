package translate

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Dictionary is an offline table of label translations keyed by label and then by
// language code.
type Dictionary struct {
	entries map[string]map[string]string
}

// NewDictionary wraps entries in a Dictionary. A nil map gives an empty dictionary.
func NewDictionary(entries map[string]map[string]string) *Dictionary {
	if entries == nil {
		entries = map[string]map[string]string{}
	}
	return &Dictionary{entries: entries}
}

// ReadDictionary parses a JSON document of the form {"label": {"lang": "translation"}}.
func ReadDictionary(r io.Reader) (*Dictionary, error) {
	var entries map[string]map[string]string
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "failed to decode dictionary")
	}
	return NewDictionary(entries), nil
}

// LoadDictionary reads a dictionary file.
//
// Arguments:
//   - path: The path to the JSON dictionary.
//
// Returns:
//   - *Dictionary: The parsed dictionary.
//   - error: An error if the file cannot be read or parsed.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dictionary %s", path)
	}
	defer f.Close()

	return ReadDictionary(f)
}

// Len returns the number of labels in the dictionary.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Lookup returns the translation of label into lang when the dictionary has one.
func (d *Dictionary) Lookup(label, lang string) (string, bool) {
	if d == nil {
		return "", false
	}
	translated, ok := d.entries[label][lang]
	return translated, ok
}

// Translate returns the translation of label into lang, or label itself when the
// dictionary has none.
func (d *Dictionary) Translate(label, lang string) string {
	if translated, ok := d.Lookup(label, lang); ok {
		return translated
	}
	return label
}
