package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aethermart/dataplane/engine/entity"
)

// Source reads table extracts from a directory of CSV files named
// after their production tables (customers.csv, orders.csv, ...).
type Source struct {
	dir string
}

var _ Reader = (*Source)(nil)

// NewSource creates a Source over dir.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Read loads the extract for one table. Every header column must be
// the table's id column or one of its fields; cells stay raw strings.
func (s *Source) Read(def *entity.Def) (*Extract, error) {
	path := filepath.Join(s.dir, def.Table+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening extract for %s: %w", def.Table, err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	known := make(map[string]bool, len(def.Fields)+1)
	known[def.IDColumn] = true
	for _, fd := range def.Fields {
		known[fd.Name] = true
	}
	for _, column := range header {
		if !known[column] {
			return nil, fmt.Errorf("extract %s: unknown column %q", path, column)
		}
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", path, err)
	}
	return &Extract{Columns: header, Rows: rows}, nil
}
