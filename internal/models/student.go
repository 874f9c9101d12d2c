package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StudentProfile is the academic profile a recommendation run starts from.
// Stages treat it as a value and never modify it in place.
type StudentProfile struct {
	Name                      string   `json:"name"`
	ContactInfo               string   `json:"contactInfo"`
	Marks10th                 int      `json:"marks10th"`
	Marks12th                 int      `json:"marks12th"`
	BtechCGPA                 float64  `json:"btechCgpa"`
	IELTSScore                *float64 `json:"ieltsScore,omitempty"`
	TOEFLScore                *float64 `json:"toeflScore,omitempty"`
	WorkExperience            string   `json:"workExperience"`
	PreferredCountries        []string `json:"preferredCountries"`
	BtechBranch               string   `json:"btechBranch"`
	InterestedFieldForMasters string   `json:"interestedFieldForMasters,omitempty"`
}

// Clone returns a deep copy.
func (p StudentProfile) Clone() StudentProfile {
	out := p
	if p.IELTSScore != nil {
		v := *p.IELTSScore
		out.IELTSScore = &v
	}
	if p.TOEFLScore != nil {
		v := *p.TOEFLScore
		out.TOEFLScore = &v
	}
	if p.PreferredCountries != nil {
		out.PreferredCountries = append([]string(nil), p.PreferredCountries...)
	}
	return out
}

// FieldOfInterest is the subject used in search queries: the masters field
// when set, the undergraduate branch otherwise.
func (p StudentProfile) FieldOfInterest() string {
	if f := strings.TrimSpace(p.InterestedFieldForMasters); f != "" {
		return f
	}
	return strings.TrimSpace(p.BtechBranch)
}

// PrefersCountry compares case-insensitively after trimming.
func (p StudentProfile) PrefersCountry(country string) bool {
	c := strings.TrimSpace(country)
	if c == "" {
		return false
	}
	for _, pc := range p.PreferredCountries {
		if strings.EqualFold(strings.TrimSpace(pc), c) {
			return true
		}
	}
	return false
}

// ToMap renders the profile with the same keys as its JSON form. Optional
// scores are omitted when unset.
func (p StudentProfile) ToMap() map[string]interface{} {
	countries := make([]interface{}, len(p.PreferredCountries))
	for i, c := range p.PreferredCountries {
		countries[i] = c
	}
	m := map[string]interface{}{
		"name":                      p.Name,
		"contactInfo":               p.ContactInfo,
		"marks10th":                 p.Marks10th,
		"marks12th":                 p.Marks12th,
		"btechCgpa":                 p.BtechCGPA,
		"workExperience":            p.WorkExperience,
		"preferredCountries":        countries,
		"btechBranch":               p.BtechBranch,
		"interestedFieldForMasters": p.InterestedFieldForMasters,
	}
	if p.IELTSScore != nil {
		m["ieltsScore"] = *p.IELTSScore
	}
	if p.TOEFLScore != nil {
		m["toeflScore"] = *p.TOEFLScore
	}
	return m
}

// ProfileFromMap reads a profile out of decoded JSON or form values. Numbers
// may arrive as float64, int, json.Number or numeric strings. A blank optional
// score stays nil.
func ProfileFromMap(m map[string]interface{}) (StudentProfile, error) {
	var (
		p   StudentProfile
		err error
	)
	p.Name = stringField(m, "name")
	p.ContactInfo = stringField(m, "contactInfo")
	p.WorkExperience = stringField(m, "workExperience")
	p.BtechBranch = stringField(m, "btechBranch")
	p.InterestedFieldForMasters = stringField(m, "interestedFieldForMasters")

	if p.Marks10th, err = intField(m, "marks10th"); err != nil {
		return StudentProfile{}, err
	}
	if p.Marks12th, err = intField(m, "marks12th"); err != nil {
		return StudentProfile{}, err
	}
	cgpa, err := floatField(m, "btechCgpa")
	if err != nil {
		return StudentProfile{}, err
	}
	if cgpa != nil {
		p.BtechCGPA = *cgpa
	}
	if p.IELTSScore, err = floatField(m, "ieltsScore"); err != nil {
		return StudentProfile{}, err
	}
	if p.TOEFLScore, err = floatField(m, "toeflScore"); err != nil {
		return StudentProfile{}, err
	}

	switch v := m["preferredCountries"].(type) {
	case nil:
	case []string:
		p.PreferredCountries = append([]string(nil), v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				p.PreferredCountries = append(p.PreferredCountries, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				p.PreferredCountries = append(p.PreferredCountries, s)
			}
		}
	default:
		return StudentProfile{}, fmt.Errorf("preferredCountries: unsupported type %T", v)
	}
	return p, nil
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func intField(m map[string]interface{}, key string) (int, error) {
	f, err := floatField(m, key)
	if err != nil || f == nil {
		return 0, err
	}
	return int(*f), nil
}

func floatField(m map[string]interface{}, key string) (*float64, error) {
	var f float64
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		f = parsed
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", key, v)
	}
	return &f, nil
}
