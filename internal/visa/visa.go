// Package visa serves student visa requirements from a static JSON file.
package visa

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"unipal-workers/internal/models"
)

// Directory is read-only after loading and safe for concurrent use.
type Directory struct {
	byCountry map[string]models.VisaInfo
}

// NewDirectory indexes entries by lower-cased country.
func NewDirectory(entries []models.VisaInfo) *Directory {
	d := &Directory{byCountry: make(map[string]models.VisaInfo, len(entries))}
	for _, e := range entries {
		key := normalize(e.Country)
		if key == "" {
			continue
		}
		d.byCountry[key] = e
	}
	return d
}

// LoadDirectory reads either {"<Country>": {...}} or a list of entries that
// carry their own "country" field.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read visa info: %w", err)
	}
	return ParseDirectory(data)
}

func ParseDirectory(data []byte) (*Directory, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []models.VisaInfo
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse visa info: %w", err)
		}
		return NewDirectory(list), nil
	}

	var byName map[string]models.VisaInfo
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, fmt.Errorf("parse visa info: %w", err)
	}
	entries := make([]models.VisaInfo, 0, len(byName))
	for country, info := range byName {
		if info.Country == "" {
			info.Country = country
		}
		entries = append(entries, info)
	}
	return NewDirectory(entries), nil
}

// Lookup is case-insensitive. The returned value is a copy.
func (d *Directory) Lookup(country string) (*models.VisaInfo, bool) {
	info, ok := d.byCountry[normalize(country)]
	if !ok {
		return nil, false
	}
	info.Requirements = append([]string(nil), info.Requirements...)
	return &info, true
}

// Countries lists the known countries, sorted.
func (d *Directory) Countries() []string {
	out := make([]string, 0, len(d.byCountry))
	for _, info := range d.byCountry {
		out = append(out, info.Country)
	}
	sort.Strings(out)
	return out
}

func normalize(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
