package validation

import (
	"strings"

	"unipal-workers/internal/models"
)

const studentProfileSchema = `{
  "type": "object",
  "required": ["name", "contactInfo", "marks10th", "marks12th", "btechCgpa", "preferredCountries", "btechBranch"],
  "properties": {
    "name":        {"type": "string", "pattern": "\\S"},
    "contactInfo": {"type": "string", "pattern": "\\S"},
    "marks10th":   {"type": "integer", "minimum": 0, "maximum": 100},
    "marks12th":   {"type": "integer", "minimum": 0, "maximum": 100},
    "btechCgpa":   {"type": "number", "minimum": 0, "maximum": 10},
    "ieltsScore":  {"type": "number", "minimum": 0, "maximum": 9},
    "toeflScore":  {"type": "number", "minimum": 0},
    "workExperience": {"type": "string"},
    "preferredCountries": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "pattern": "\\S"}
    },
    "btechBranch": {"type": "string", "pattern": "\\S"},
    "interestedFieldForMasters": {"type": "string"}
  }
}`

// ValidateProfile applies the form rules: required text fields, score ranges,
// at least one country, and a contact that is an email or a phone number.
func ValidateProfile(p models.StudentProfile) *ValidationResult {
	result := ValidateDocument(studentProfileSchema, p.ToMap())

	contact := strings.TrimSpace(p.ContactInfo)
	if contact != "" && !ValidateEmail(contact) && !ValidatePhone(contact) {
		result.add("contactInfo", "must be a valid email address or phone number", "INVALID_CONTACT")
	}
	return result
}

// IsEmailContact reports whether a validated contact is an email address.
func IsEmailContact(contact string) bool {
	return ValidateEmail(strings.TrimSpace(contact))
}
