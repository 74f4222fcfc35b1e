package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Document names of the persisted key/value files.
const (
	docDataSheet     = "data.json"
	docChecksum      = "checksum.md5"
	docRouteNumbers  = "route_numbers.json"
	docMtrBusAliases = "mtr_bus_aliases.json"
	DocPreferences   = "preferences.json"
)

// Store persists catalog documents as flat files under a single
// directory. All writes go through a temp file plus rename, so a crash
// mid-write never corrupts the previous copy.
type Store struct {
	Dir string
}

// NewStore creates the backing directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) path(doc string) string {
	return filepath.Join(s.Dir, doc)
}

// Has checks whether a document exists.
func (s *Store) Has(doc string) bool {
	_, err := os.Stat(s.path(doc))
	return err == nil
}

// ReadJSON loads a persisted document into v.
func (s *Store) ReadJSON(doc string, v any) error {
	raw, err := os.ReadFile(s.path(doc))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// WriteJSON atomically persists v as a document.
func (s *Store) WriteJSON(doc string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.writeAtomic(doc, raw)
}

// ReadChecksum returns the persisted catalog checksum, or "" when no
// checksum marker exists.
func (s *Store) ReadChecksum() string {
	raw, err := os.ReadFile(s.path(docChecksum))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// WriteChecksum persists the catalog checksum marker.
func (s *Store) WriteChecksum(sum string) error {
	return s.writeAtomic(docChecksum, []byte(sum))
}

// ReadDataSheet loads the persisted catalog snapshot.
func (s *Store) ReadDataSheet() (*DataSheet, error) {
	var d DataSheet
	if err := s.ReadJSON(docDataSheet, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// WriteDataSheet persists the catalog snapshot together with the
// derived route-number index.
func (s *Store) WriteDataSheet(d *DataSheet) error {
	if err := s.WriteJSON(docDataSheet, d); err != nil {
		return err
	}
	return s.WriteJSON(docRouteNumbers, routeNumberIndex(d))
}

// ReadMtrBusAliases loads the MTR bus stop-alias table, keyed by
// catalog stop ID with the upstream schedule feed IDs as values.
// Missing table is not an error, aliases are optional.
func (s *Store) ReadMtrBusAliases() map[string][]string {
	aliases := make(map[string][]string)
	if err := s.ReadJSON(docMtrBusAliases, &aliases); err != nil {
		return nil
	}
	return aliases
}

func (s *Store) writeAtomic(doc string, raw []byte) error {
	tmp := s.path(doc) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(doc))
}

// routeNumberIndex collects the distinct route numbers in the catalog,
// persisted separately so input panels can load without the full sheet.
func routeNumberIndex(d *DataSheet) []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, r := range d.RouteList {
		if !seen[r.RouteNumber] {
			seen[r.RouteNumber] = true
			numbers = append(numbers, r.RouteNumber)
		}
	}
	return numbers
}
