package upc

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const mappingsFile = "upc_mappings.json"

// gtinWidth is the GTIN-14 width every code is padded to before keying.
const gtinWidth = 14

// Mapping links one barcode to the ASIN it was learned for.
type Mapping struct {
	UPC        string    `json:"upc"`
	ASIN       string    `json:"asin"`
	Title      string    `json:"title,omitempty"`
	Brand      string    `json:"brand,omitempty"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Normalize left-pads a UPC-A, EAN-13 or GTIN-14 to GTIN-14 so the same
// product matches in any of its printed forms.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if n := gtinWidth - len(code); n > 0 {
		code = strings.Repeat("0", n) + code
	}
	return code
}

// Database is the learned UPC to ASIN table, persisted as a JSON array in
// dir/upc_mappings.json. Writes stay in memory until Save.
type Database struct {
	dir string
	now func() time.Time

	mu     sync.RWMutex
	byCode map[string]Mapping
	dirty  bool
}

// NewDatabase loads the mappings under dir. A missing file is an empty
// database; an unreadable one is an error.
func NewDatabase(dir string) (*Database, error) {
	db := &Database{dir: dir, now: time.Now, byCode: make(map[string]Mapping)}

	data, err := os.ReadFile(db.file())
	if errors.Is(err, fs.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upc mappings: %w", err)
	}

	var stored []Mapping
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode upc mappings %s: %w", db.file(), err)
	}
	for _, m := range stored {
		db.byCode[Normalize(m.UPC)] = m
	}
	return db, nil
}

func (db *Database) file() string { return filepath.Join(db.dir, mappingsFile) }

// Lookup matches code in any of its UPC, EAN or GTIN forms.
func (db *Database) Lookup(code string) (Mapping, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.byCode[Normalize(code)]
	return m, ok
}

// Put records m, replacing any mapping for the same code, and stamps it.
func (db *Database) Put(m Mapping) {
	m.UpdatedAt = db.now()
	db.mu.Lock()
	db.byCode[Normalize(m.UPC)] = m
	db.dirty = true
	db.mu.Unlock()
}

// Delete forgets code. It reports whether a mapping was removed.
func (db *Database) Delete(code string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := Normalize(code)
	if _, ok := db.byCode[key]; !ok {
		return false
	}
	delete(db.byCode, key)
	db.dirty = true
	return true
}

// All returns every mapping ordered by normalized code.
func (db *Database) All() []Mapping {
	return db.filter(func(Mapping) bool { return true })
}

// ByASIN returns the codes learned for asin, case-insensitively.
func (db *Database) ByASIN(asin string) []Mapping {
	return db.filter(func(m Mapping) bool { return strings.EqualFold(m.ASIN, asin) })
}

func (db *Database) filter(keep func(Mapping) bool) []Mapping {
	db.mu.RLock()
	out := make([]Mapping, 0, len(db.byCode))
	for _, m := range db.byCode {
		if keep(m) {
			out = append(out, m)
		}
	}
	db.mu.RUnlock()

	slices.SortFunc(out, func(a, b Mapping) int { return cmp.Compare(Normalize(a.UPC), Normalize(b.UPC)) })
	return out
}

// Stats summarizes the table.
type Stats struct {
	Mappings int            `json:"mappings"`
	ASINs    int            `json:"asins"`
	BySource map[string]int `json:"by_source"`
	Unsaved  bool           `json:"unsaved"`
}

func (db *Database) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s := Stats{Mappings: len(db.byCode), BySource: make(map[string]int), Unsaved: db.dirty}
	asins := make(map[string]struct{})
	for _, m := range db.byCode {
		src := m.Source
		if src == "" {
			src = "unknown"
		}
		s.BySource[src]++
		asins[strings.ToUpper(m.ASIN)] = struct{}{}
	}
	s.ASINs = len(asins)
	return s
}

// Save writes the table if anything changed since the last Save. The file
// is replaced atomically.
func (db *Database) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.dirty {
		return nil
	}

	all := make([]Mapping, 0, len(db.byCode))
	for _, m := range db.byCode {
		all = append(all, m)
	}
	slices.SortFunc(all, func(a, b Mapping) int { return cmp.Compare(Normalize(a.UPC), Normalize(b.UPC)) })

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode upc mappings: %w", err)
	}
	if err := os.MkdirAll(db.dir, 0o755); err != nil {
		return fmt.Errorf("create upc data dir: %w", err)
	}

	tmp := db.file() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write upc mappings: %w", err)
	}
	if err := os.Rename(tmp, db.file()); err != nil {
		return fmt.Errorf("replace upc mappings: %w", err)
	}
	db.dirty = false
	return nil
}
