package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"unipal-workers/internal/common/validation"
	"unipal-workers/internal/models"
)

// replyObjectSchema is the JSON shape the extraction prompt asks for. Keys
// outside it are matched loosely by label, so only the requested keys are
// typed.
const replyObjectSchema = `{
	"type": "object",
	"definitions": {
		"text": {
			"type": ["string", "number", "array", "null"],
			"items": {"type": ["string", "number"]}
		}
	},
	"properties": {
		"university_name": {"$ref": "#/definitions/text"},
		"country": {"$ref": "#/definitions/text"},
		"tuition_fees": {"$ref": "#/definitions/text"},
		"eligibility_criteria": {"$ref": "#/definitions/text"},
		"deadlines": {"$ref": "#/definitions/text"},
		"course_curriculum": {"$ref": "#/definitions/text"},
		"scholarship_options": {"$ref": "#/definitions/text"}
	}
}`

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	labelPattern = regexp.MustCompile(`^\s*(?:[-*]\s*)?(?:\d+\s*[.)]\s*)?\**\s*([A-Za-z][A-Za-z /&()-]{1,40}?)\s*\**\s*:\s*\**\s*(.*)$`)
	nonLetters   = regexp.MustCompile(`[^a-z]`)
)

// fieldFor maps a normalized label (lowercase letters only) to a setter.
func fieldFor(label string) func(*models.ExtractionResult, string) {
	switch label {
	case "universityname", "university", "name", "institution", "institutionname":
		return func(r *models.ExtractionResult, v string) { r.UniversityName = v }
	case "country", "location":
		return func(r *models.ExtractionResult, v string) { r.Country = v }
	case "tuitionfees", "tuitionfee", "tuition", "fees", "fee":
		return func(r *models.ExtractionResult, v string) { r.TuitionFees = v }
	case "eligibilitycriteria", "eligibility", "admissionrequirements", "requirements":
		return func(r *models.ExtractionResult, v string) { r.EligibilityCriteria = v }
	case "deadlines", "deadline", "applicationdeadlines", "applicationdeadline":
		return func(r *models.ExtractionResult, v string) { r.Deadlines = v }
	case "coursecurriculum", "curriculum", "course", "courses", "program", "programme":
		return func(r *models.ExtractionResult, v string) { r.CourseCurriculum = v }
	case "scholarshipoptions", "scholarships", "scholarship", "financialaid":
		return func(r *models.ExtractionResult, v string) { r.ScholarshipOptions = v }
	}
	return nil
}

func normalizeLabel(s string) string {
	return nonLetters.ReplaceAllString(strings.ToLower(s), "")
}

// Parse reads a model reply as JSON first and as a labelled list second.
// When neither yields a field, ok is false and the reply is kept in
// RawContent with every field NotAvailable.
func Parse(reply string) (result models.ExtractionResult, ok bool) {
	if r, found := parseJSON(reply); found {
		return fillMissing(r), true
	}
	if r, found := parseList(reply); found {
		return fillMissing(r), true
	}
	r := fillMissing(models.ExtractionResult{})
	r.RawContent = strings.TrimSpace(reply)
	return r, false
}

func jsonCandidates(reply string) []string {
	var out []string
	if m := fencePattern.FindStringSubmatch(reply); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	out = append(out, strings.TrimSpace(reply))
	if start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}"); start >= 0 && end > start {
		out = append(out, reply[start:end+1])
	}
	return out
}

func parseJSON(reply string) (models.ExtractionResult, bool) {
	for _, candidate := range jsonCandidates(reply) {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			continue
		}
		if !validation.ValidateDocument(replyObjectSchema, obj).Valid {
			continue
		}

		var r models.ExtractionResult
		found := false
		for k, v := range obj {
			set := fieldFor(normalizeLabel(k))
			if set == nil {
				continue
			}
			set(&r, stringify(v))
			found = true
		}
		if found {
			return r, true
		}
	}
	return models.ExtractionResult{}, false
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]interface{}:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// parseList reads "1. University Name: MIT" style lines. Lines without a
// recognised label continue the previous field.
func parseList(reply string) (models.ExtractionResult, bool) {
	var (
		r       models.ExtractionResult
		found   bool
		current func(*models.ExtractionResult, string)
		buf     []string
	)
	flush := func() {
		if current != nil {
			current(&r, strings.TrimSpace(strings.Join(buf, " ")))
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(reply, "\n") {
		if m := labelPattern.FindStringSubmatch(line); m != nil {
			if set := fieldFor(normalizeLabel(m[1])); set != nil {
				flush()
				current = set
				found = true
				buf = append(buf, strings.Trim(m[2], "* "))
				continue
			}
		}
		if current != nil && strings.TrimSpace(line) != "" {
			buf = append(buf, strings.TrimSpace(line))
		}
	}
	flush()
	return r, found
}

func fillMissing(r models.ExtractionResult) models.ExtractionResult {
	for _, f := range []*string{
		&r.UniversityName, &r.Country, &r.TuitionFees, &r.EligibilityCriteria,
		&r.Deadlines, &r.CourseCurriculum, &r.ScholarshipOptions,
	} {
		if strings.TrimSpace(*f) == "" {
			*f = models.NotAvailable
		}
	}
	return r
}
