// Package extract turns page text into the seven university fields with a
// language model. Failures never escape: callers always get a result, marked
// with Error when nothing could be extracted.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"
	"unipal-workers/internal/llm"
	"unipal-workers/internal/models"
)

// DefaultInstruction asks for the numbered list shape. The JSON shape is
// accepted as well.
const DefaultInstruction = `Analyze the following university web page and extract these details:
1. University Name
2. Country
3. Tuition Fees (with currency code, e.g. USD 30,000)
4. Eligibility Criteria (minimum CGPA, IELTS and TOEFL scores)
5. Application Deadlines
6. Course Curriculum
7. Scholarship Options

Respond either as a numbered list in the form "1. University Name: ..." or as a JSON object with the keys
university_name, country, tuition_fees, eligibility_criteria, deadlines, course_curriculum, scholarship_options.
Use 'N/A' when information is missing.`

const systemInstruction = "You extract factual admissions data from university web pages. Never invent values."

type Config struct {
	MaxChars       int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RateDelay      time.Duration
}

// DefaultConfig mirrors the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars:       12000,
		MaxAttempts:    3,
		InitialBackoff: 4 * time.Second,
		MaxBackoff:     10 * time.Second,
		RateDelay:      time.Second,
	}
}

type Extractor struct {
	config Config
	client llm.Client
	logger logger.Logger
}

func NewExtractor(config Config, client llm.Client, log logger.Logger) *Extractor {
	if config.MaxChars <= 0 {
		config.MaxChars = 12000
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Extractor{
		config: config,
		client: client,
		logger: logger.OrNop(log).WithFields(map[string]interface{}{"component": "extractor"}),
	}
}

// Extract sends a prefix of pageText to the model and parses the reply.
func (e *Extractor) Extract(ctx context.Context, pageText, instruction string) models.ExtractionResult {
	if strings.TrimSpace(pageText) == "" {
		metrics.Extractions.WithLabelValues("empty").Inc()
		return models.FailedExtraction(models.ErrNoContent)
	}
	if instruction == "" {
		instruction = DefaultInstruction
	}

	prompt := fmt.Sprintf("%s\n\nContent:\n%s", instruction, Truncate(pageText, e.config.MaxChars))

	reply, err := e.complete(ctx, prompt)
	if err != nil {
		metrics.Extractions.WithLabelValues("failed").Inc()
		e.logger.Warn("extraction failed", map[string]interface{}{"error": err})
		return models.FailedExtraction(err.Error())
	}

	result, ok := Parse(reply)
	if !ok {
		metrics.Extractions.WithLabelValues("opaque").Inc()
		e.logger.Warn("model reply matched no known shape", map[string]interface{}{
			"errorCode": "LLM_RESPONSE_MALFORMED",
			"replySize": len(reply),
		})
		return result
	}
	metrics.Extractions.WithLabelValues("ok").Inc()
	return result
}

// complete runs the rate delay and the retry loop around one model call.
func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, e.backoff(attempt-1)); err != nil {
				return "", fmt.Errorf("%w: %v", llm.ErrLLMTimeout, err)
			}
		}
		if err := sleep(ctx, e.config.RateDelay); err != nil {
			return "", fmt.Errorf("%w: %v", llm.ErrLLMTimeout, err)
		}

		reply, err := e.client.Complete(ctx, prompt, systemInstruction)
		if err == nil {
			if strings.TrimSpace(reply) == "" {
				return "", fmt.Errorf("%w: empty reply", llm.ErrLLMFailed)
			}
			return reply, nil
		}
		lastErr = err
		e.logger.Debug("model call failed", map[string]interface{}{"attempt": attempt, "error": err})

		if errors.Is(err, llm.ErrMissingAPIKey) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

// backoff returns the wait before retry n (1-based): initial * 2^(n-1),
// capped at MaxBackoff.
func (e *Extractor) backoff(n int) time.Duration {
	d := e.config.InitialBackoff << (n - 1)
	if e.config.MaxBackoff > 0 && (d > e.config.MaxBackoff || d <= 0) {
		d = e.config.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Truncate returns the first max characters of s without splitting a rune.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
