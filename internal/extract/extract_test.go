package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/llm"
	"unipal-workers/internal/models"
)

func createTestConfig() Config {
	return Config{
		MaxChars:       50,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		RateDelay:      0,
	}
}

func staticClient(reply string, err error) (llm.Client, *int32) {
	var calls int32
	return llm.ClientFunc(func(ctx context.Context, prompt, system string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return reply, err
	}), &calls
}

// ==========================
// Degradation
// ==========================

func TestExtract_EmptyInput(t *testing.T) {
	client, calls := staticClient("unused", nil)
	e := NewExtractor(createTestConfig(), client, logger.NewTestLogger(t))

	for _, in := range []string{"", "   \n\t"} {
		result := e.Extract(context.Background(), in, "any instruction")
		assert.True(t, result.Failed())
		assert.Equal(t, models.ErrNoContent, result.Error)
		assert.Equal(t, models.NotAvailable, result.UniversityName)
		assert.Equal(t, models.NotAvailable, result.ScholarshipOptions)
	}
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestExtract_ModelErrorAfterRetries(t *testing.T) {
	client, calls := staticClient("", fmt.Errorf("%w: status 503", llm.ErrLLMFailed))
	e := NewExtractor(createTestConfig(), client, logger.NewNoOpLogger())

	result := e.Extract(context.Background(), "MIT admissions page", "")
	assert.True(t, result.Failed())
	assert.Contains(t, result.Error, "status 503")
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestExtract_MissingKeyIsNotRetried(t *testing.T) {
	client, calls := staticClient("", llm.ErrMissingAPIKey)
	e := NewExtractor(createTestConfig(), client, logger.NewNoOpLogger())

	result := e.Extract(context.Background(), "page", "")
	assert.True(t, result.Failed())
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestExtract_RetryThenSuccess(t *testing.T) {
	var calls int32
	client := llm.ClientFunc(func(ctx context.Context, prompt, system string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("rate limited")
		}
		return "1. University Name: MIT\n2. Country: USA", nil
	})
	e := NewExtractor(createTestConfig(), client, logger.NewNoOpLogger())

	result := e.Extract(context.Background(), "page", "")
	assert.False(t, result.Failed())
	assert.Equal(t, "MIT", result.UniversityName)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExtract_CancelledDuringRateDelay(t *testing.T) {
	client, calls := staticClient("1. University Name: MIT", nil)
	cfg := createTestConfig()
	cfg.RateDelay = time.Hour
	e := NewExtractor(cfg, client, logger.NewNoOpLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := e.Extract(ctx, "page", "")
	assert.True(t, result.Failed())
	assert.Contains(t, result.Error, "LLM_TIMEOUT")
	assert.Zero(t, atomic.LoadInt32(calls))
}

// ==========================
// Prompt and truncation
// ==========================

func TestExtract_TruncatesPrompt(t *testing.T) {
	var prompt string
	client := llm.ClientFunc(func(ctx context.Context, p, system string) (string, error) {
		prompt = p
		return `{"university_name": "ETH"}`, nil
	})
	e := NewExtractor(createTestConfig(), client, logger.NewNoOpLogger())

	page := strings.Repeat("é", 40) + strings.Repeat("x", 40)
	e.Extract(context.Background(), page, "INSTR")

	require.True(t, strings.HasPrefix(prompt, "INSTR"))
	body := prompt[strings.Index(prompt, "Content:\n")+len("Content:\n"):]
	assert.Equal(t, strings.Repeat("é", 40)+strings.Repeat("x", 10), body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestBackoffIsCapped(t *testing.T) {
	e := NewExtractor(Config{InitialBackoff: 4 * time.Second, MaxBackoff: 10 * time.Second, MaxAttempts: 3}, nil, nil)
	assert.Equal(t, 4*time.Second, e.backoff(1))
	assert.Equal(t, 8*time.Second, e.backoff(2))
	assert.Equal(t, 10*time.Second, e.backoff(3))
}

// ==========================
// Reply shapes
// ==========================

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		ok    bool
		check func(t *testing.T, r models.ExtractionResult)
	}{
		{
			name: "numbered list",
			reply: `Here is what I found:
1. University Name: Massachusetts Institute of Technology
2. Country: USA
3. Tuition Fees: USD 57,986 per year
4. Eligibility Criteria: Minimum CGPA 8.0, IELTS 7.0
   TOEFL 100 recommended
5. Application Deadlines: December 15
6. Course Curriculum: N/A
7. Scholarship Options: Need-based aid`,
			ok: true,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.Equal(t, "Massachusetts Institute of Technology", r.UniversityName)
				assert.Equal(t, "USD 57,986 per year", r.TuitionFees)
				assert.Equal(t, "Minimum CGPA 8.0, IELTS 7.0 TOEFL 100 recommended", r.EligibilityCriteria)
				assert.Equal(t, "December 15", r.Deadlines)
				assert.Equal(t, models.NotAvailable, r.CourseCurriculum)
			},
		},
		{
			name:  "bold markdown labels",
			reply: "**University Name:** ETH Zurich\n**Tuition Fees:** CHF 730",
			ok:    true,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.Equal(t, "ETH Zurich", r.UniversityName)
				assert.Equal(t, "CHF 730", r.TuitionFees)
				assert.Equal(t, models.NotAvailable, r.Country)
			},
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"university_name\": \"UofT\", \"country\": \"Canada\", \"tuition_fees\": \"CAD 45,000\", \"scholarship_options\": [\"Lester B. Pearson\", \"Merit awards\"]}\n```",
			ok:    true,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.Equal(t, "UofT", r.UniversityName)
				assert.Equal(t, "CAD 45,000", r.TuitionFees)
				assert.Equal(t, "Lester B. Pearson; Merit awards", r.ScholarshipOptions)
			},
		},
		{
			name:  "json embedded in prose",
			reply: `Sure! {"University Name": "Monash", "Eligibility Criteria": "GPA 7.5"} Hope this helps.`,
			ok:    true,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.Equal(t, "Monash", r.UniversityName)
				assert.Equal(t, "GPA 7.5", r.EligibilityCriteria)
			},
		},
		{
			name:  "opaque text",
			reply: "I could not find structured information on this page.",
			ok:    false,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.False(t, r.Failed())
				assert.Equal(t, "I could not find structured information on this page.", r.RawContent)
				assert.Equal(t, models.NotAvailable, r.UniversityName)
			},
		},
		{
			name:  "json with a nested object under a requested key is refused",
			reply: `{"university_name": "ETH", "tuition_fees": {"amount": 730}}`,
			ok:    false,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.Equal(t, models.NotAvailable, r.UniversityName)
				assert.Equal(t, `{"university_name": "ETH", "tuition_fees": {"amount": 730}}`, r.RawContent)
			},
		},
		{
			name:  "json with numbers and nulls",
			reply: `{"university_name": "TUM", "tuition_fees": 0, "deadlines": null}`,
			ok:    true,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.Equal(t, "TUM", r.UniversityName)
				assert.Equal(t, "0", r.TuitionFees)
				assert.Equal(t, models.NotAvailable, r.Deadlines)
			},
		},
		{
			name:  "json without known keys falls back to opaque",
			reply: `{"foo": "bar"}`,
			ok:    false,
			check: func(t *testing.T, r models.ExtractionResult) {
				assert.Equal(t, `{"foo": "bar"}`, r.RawContent)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Parse(tt.reply)
			assert.Equal(t, tt.ok, ok)
			tt.check(t, r)
		})
	}
}
