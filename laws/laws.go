// Package laws holds the curated mapping from law section identifiers
// to exact statutory text, backing the laws_lookup tool.
package laws

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"caagent/types"
)

// DB is a read-only section->text mapping loaded once at startup.
type DB struct {
	sections map[string]string
	keys     []string // preserves file order for deterministic substring matches
}

// Load reads the laws file. A missing file is not fatal: lookups on an
// empty DB report not found, and serving continues without exact
// citations.
func Load(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("laws file not found, lookups will report not found", "path", path)
			return &DB{sections: map[string]string{}}, nil
		}
		return nil, err
	}

	var sections map[string]string
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, err
	}

	// json.Unmarshal loses object key order, so recover a stable order
	// from the raw file for the substring pass.
	keys := keyOrder(data, sections)

	slog.Info("loaded laws DB", "sections", len(sections))
	return &DB{sections: sections, keys: keys}, nil
}

// Lookup resolves a section identifier in two passes: a
// case-insensitive exact key match first, then a case-insensitive
// substring match against the keys. It never fails; an unmatched
// section comes back with Found=false and the query echoed.
func (db *DB) Lookup(section string) types.LawsResult {
	s := strings.ToLower(strings.TrimSpace(section))

	for _, key := range db.keys {
		if strings.ToLower(key) == s {
			return types.LawsResult{Found: true, Section: key, Text: db.sections[key]}
		}
	}
	for _, key := range db.keys {
		if strings.Contains(strings.ToLower(key), s) {
			return types.LawsResult{Found: true, Section: key, Text: db.sections[key]}
		}
	}
	return types.LawsResult{
		Found:   false,
		Section: section,
		Text:    "Section not found in local DB.",
	}
}

func (db *DB) Len() int {
	return len(db.sections)
}

// keyOrder extracts top-level object keys in their order of appearance.
func keyOrder(data []byte, sections map[string]string) []string {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	var keys []string
	// consume opening brace
	if _, err := dec.Token(); err != nil {
		return mapKeys(sections)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return mapKeys(sections)
		}
		key, ok := tok.(string)
		if !ok {
			return mapKeys(sections)
		}
		keys = append(keys, key)
		var value string
		if err := dec.Decode(&value); err != nil {
			return mapKeys(sections)
		}
	}
	return keys
}

func mapKeys(sections map[string]string) []string {
	keys := make([]string, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}
	return keys
}
