// Package scholarships asks the language model for scholarships that fit a
// student profile.
package scholarships

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/llm"
	"unipal-workers/internal/models"
)

// MaxResults caps the scholarships returned per run.
const MaxResults = 3

const systemInstruction = "You are a study-abroad counsellor. Recommend real, currently offered scholarships only."

var (
	blockSeparator = regexp.MustCompile(`\n\s*\n`)
	// "1. Scholarship Name: X", "- **Amount:** X", "Eligibility - X"
	labelledLine = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*•]\s*)?\**\s*([A-Za-z ]+?)\s*\**\s*[:\-]\s*\**\s*(.+)$`)
	numberPrefix = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)
)

type Finder struct {
	client llm.Client
	logger logger.Logger
}

func NewFinder(client llm.Client, log logger.Logger) *Finder {
	return &Finder{
		client: client,
		logger: logger.OrNop(log).WithFields(map[string]interface{}{"component": "scholarship-finder"}),
	}
}

// Prompt describes the student and the shortlisted universities.
func Prompt(p models.StudentProfile, universities []models.University) string {
	var sb strings.Builder
	sb.WriteString("Based on the following student profile:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", p.Name)
	fmt.Fprintf(&sb, "- 10th Marks: %d\n", p.Marks10th)
	fmt.Fprintf(&sb, "- 12th Marks: %d\n", p.Marks12th)
	fmt.Fprintf(&sb, "- B.Tech CGPA: %.2f\n", p.BtechCGPA)
	fmt.Fprintf(&sb, "- B.Tech Branch: %s\n", orNA(p.BtechBranch))
	fmt.Fprintf(&sb, "- Interested Field for Masters: %s\n", orNA(p.InterestedFieldForMasters))
	fmt.Fprintf(&sb, "- Work Experience: %s\n", orNA(p.WorkExperience))
	fmt.Fprintf(&sb, "- IELTS Score: %s\n", scoreOrNA(p.IELTSScore))
	fmt.Fprintf(&sb, "- TOEFL Score: %s\n", scoreOrNA(p.TOEFLScore))
	fmt.Fprintf(&sb, "- Preferred Countries: %s\n", strings.Join(p.PreferredCountries, ", "))

	if len(universities) > 0 {
		sb.WriteString("\nShortlisted universities:\n")
		for _, u := range universities {
			fmt.Fprintf(&sb, "- %s (%s)\n", u.Name, u.Country)
		}
	}

	sb.WriteString(`
Recommend the top 3 scholarships that match this student's profile in the preferred countries.
Separate scholarships with a blank line and write each one as:
Name: ...
Description: ...
Eligibility: ...
Amount: ...`)
	return sb.String()
}

// Find never fails: a model error is logged and yields no scholarships.
func (f *Finder) Find(ctx context.Context, p models.StudentProfile, universities []models.University) []models.ScholarshipInfo {
	reply, err := f.client.Complete(ctx, Prompt(p, universities), systemInstruction)
	if err != nil {
		f.logger.Warn("scholarship search failed", map[string]interface{}{
			"contactInfo": p.ContactInfo,
			"error":       err.Error(),
		})
		return []models.ScholarshipInfo{}
	}

	found := Parse(reply)
	if len(found) == 0 {
		f.logger.Warn("no scholarships parsed from reply", map[string]interface{}{"replySize": len(reply)})
	}
	return found
}

// Parse accepts a JSON array of objects or blank-line separated blocks and
// returns at most MaxResults entries.
func Parse(reply string) []models.ScholarshipInfo {
	if list, ok := parseJSON(reply); ok {
		return limit(list)
	}

	var out []models.ScholarshipInfo
	for _, block := range blockSeparator.Split(strings.ReplaceAll(reply, "\r\n", "\n"), -1) {
		if s, ok := parseBlock(block); ok {
			out = append(out, s)
		}
	}
	return limit(out)
}

func parseJSON(reply string) ([]models.ScholarshipInfo, bool) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var list []models.ScholarshipInfo
	if err := json.Unmarshal([]byte(reply[start:end+1]), &list); err != nil {
		return nil, false
	}
	out := list[:0]
	for _, s := range list {
		if strings.TrimSpace(s.Name) != "" {
			out = append(out, s)
		}
	}
	return out, true
}

// parseBlock reads labelled lines, falling back to the positional order
// name, description, eligibility, amount.
func parseBlock(block string) (models.ScholarshipInfo, bool) {
	var (
		s          models.ScholarshipInfo
		positional []string
		labelled   bool
	)
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := labelledLine.FindStringSubmatch(line); m != nil {
			value := strings.Trim(strings.TrimSpace(m[2]), "*")
			switch label := strings.ToLower(m[1]); {
			case strings.Contains(label, "name"):
				s.Name, labelled = value, true
				continue
			case strings.Contains(label, "description"):
				s.Description, labelled = value, true
				continue
			case strings.Contains(label, "eligib"):
				s.Eligibility, labelled = value, true
				continue
			case strings.Contains(label, "amount"), strings.Contains(label, "award"):
				s.Amount, labelled = value, true
				continue
			}
		}
		positional = append(positional, strings.TrimSpace(numberPrefix.ReplaceAllString(line, "")))
	}

	if !labelled {
		if len(positional) < 4 {
			return models.ScholarshipInfo{}, false
		}
		s = models.ScholarshipInfo{
			Name:        positional[0],
			Description: positional[1],
			Eligibility: positional[2],
			Amount:      positional[3],
		}
	}
	if strings.TrimSpace(s.Name) == "" {
		return models.ScholarshipInfo{}, false
	}
	return s, true
}

func limit(list []models.ScholarshipInfo) []models.ScholarshipInfo {
	if list == nil {
		return []models.ScholarshipInfo{}
	}
	if len(list) > MaxResults {
		return list[:MaxResults]
	}
	return list
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.NotAvailable
	}
	return s
}

func scoreOrNA(v *float64) string {
	if v == nil {
		return models.NotAvailable
	}
	return fmt.Sprintf("%.1f", *v)
}
