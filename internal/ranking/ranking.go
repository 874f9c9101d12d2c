// Package ranking scores candidate universities against a student profile
// and keeps the best matches.
package ranking

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/currency"
	"unipal-workers/internal/models"
)

// Points per criterion.
const (
	CountryPoints = 10
	CGPAPoints    = 10
	IELTSPoints   = 5
	TOEFLPoints   = 5
	FieldPoints   = 3

	DefaultTopN = 5
)

// Criteria names used in logs and parse errors.
const (
	CriterionCGPA  = "cgpa"
	CriterionIELTS = "ielts"
	CriterionTOEFL = "toefl"
)

// A keyword, a gap of up to 20 characters, then the number. The gap never
// crosses a digit or a list separator, and a keyword joined to another by a
// slash ("IELTS/TOEFL") is ambiguous and never matches.
var thresholdPatterns = map[string]*regexp.Regexp{
	CriterionCGPA:  thresholdPattern(`c?gpa`),
	CriterionIELTS: thresholdPattern(`ielts`),
	CriterionTOEFL: thresholdPattern(`toefl`),
}

func thresholdPattern(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\w/])` + keyword + `([^\d,;/\n]{0,20})(\d+(?:\.\d+)?)`)
}

// A gap naming another test belongs to that test's number.
var otherKeyword = regexp.MustCompile(`(?i)\b(?:c?gpa|ielts|toefl|gre|gmat|pte|duolingo)\b`)

// ParseThreshold reads the minimum score for criterion from eligibility text.
func ParseThreshold(eligibility, criterion string) (float64, error) {
	pattern, ok := thresholdPatterns[criterion]
	if !ok {
		return 0, apperrors.NewThresholdParseError(criterion, eligibility, fmt.Errorf("unknown criterion"))
	}
	for _, m := range pattern.FindAllStringSubmatch(eligibility, -1) {
		if otherKeyword.MatchString(m[1]) {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, apperrors.NewThresholdParseError(criterion, eligibility, err)
		}
		return v, nil
	}
	return 0, apperrors.NewThresholdParseError(criterion, eligibility, fmt.Errorf("no %s threshold", criterion))
}

// ScoreBreakdown holds the points earned per criterion.
type ScoreBreakdown struct {
	Country    int `json:"country"`
	CGPA       int `json:"cgpa"`
	IELTS      int `json:"ielts"`
	TOEFL      int `json:"toefl"`
	FieldBonus int `json:"fieldBonus"`
}

func (s ScoreBreakdown) Total() int {
	return s.Country + s.CGPA + s.IELTS + s.TOEFL + s.FieldBonus
}

type Config struct {
	TopN int
}

type Engine struct {
	config Config
	logger logger.Logger
}

func NewEngine(config Config, log logger.Logger) *Engine {
	if config.TopN <= 0 {
		config.TopN = DefaultTopN
	}
	return &Engine{
		config: config,
		logger: logger.OrNop(log).WithFields(map[string]interface{}{"component": "ranking"}),
	}
}

// Score evaluates each criterion on its own. A threshold that cannot be
// parsed scores 0 for that criterion only.
func (e *Engine) Score(profile models.StudentProfile, c models.RawCandidateRecord) ScoreBreakdown {
	var s ScoreBreakdown

	if profile.PrefersCountry(c.Country) {
		s.Country = CountryPoints
	}

	if t, ok := e.threshold(c, CriterionCGPA); ok && profile.BtechCGPA >= t {
		s.CGPA = CGPAPoints
	}
	if profile.IELTSScore != nil {
		if t, ok := e.threshold(c, CriterionIELTS); ok && *profile.IELTSScore >= t {
			s.IELTS = IELTSPoints
		}
	}
	if profile.TOEFLScore != nil {
		if t, ok := e.threshold(c, CriterionTOEFL); ok && *profile.TOEFLScore >= t {
			s.TOEFL = TOEFLPoints
		}
	}

	if strings.TrimSpace(profile.InterestedFieldForMasters) != "" {
		s.FieldBonus = FieldPoints
	}
	return s
}

func (e *Engine) threshold(c models.RawCandidateRecord, criterion string) (float64, bool) {
	t, err := ParseThreshold(c.EligibilityCriteria, criterion)
	if err != nil {
		e.logger.Debug("threshold not parsed", map[string]interface{}{
			"url":       c.URL,
			"criterion": criterion,
			"errorCode": string(apperrors.ErrCodeThresholdParseFailed),
		})
		return 0, false
	}
	return t, true
}

type scored struct {
	rec   models.RawCandidateRecord
	score ScoreBreakdown
}

// Rank returns min(TopN, len(candidates)) universities, best first. Equal
// scores keep their input order. Fees of the survivors are converted to INR.
func (e *Engine) Rank(profile models.StudentProfile, candidates []models.RawCandidateRecord) []models.University {
	list := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, scored{rec: c, score: e.Score(profile, c)})
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score.Total() > list[j].score.Total()
	})
	if len(list) > e.config.TopN {
		list = list[:e.config.TopN]
	}

	out := make([]models.University, 0, len(list))
	for i, s := range list {
		u := models.UniversityFromCandidate(s.rec)
		u.TuitionFees, u.Currency = currency.NormalizeFee(s.rec.TuitionFees)
		u.MatchScore = float64(s.score.Total())
		rank := i + 1
		u.Ranking = &rank
		out = append(out, u)

		e.logger.Debug("ranked", map[string]interface{}{
			"rank":  rank,
			"name":  u.Name,
			"score": s.score.Total(),
		})
	}
	return out
}
