// Package currency converts tuition fees to Indian rupees using a fixed rate
// table. There is no live exchange-rate lookup.
package currency

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
)

// Target is the only supported target currency.
const Target = "INR"

// rates holds INR per unit of each source currency.
var rates = map[string]float64{
	"USD": 82.0,
	"GBP": 103.0,
	"EUR": 89.0,
	"AUD": 54.0,
	"CAD": 60.0,
}

var (
	logMu sync.RWMutex
	log   = logger.NewNoOpLogger()
)

// SetLogger replaces the package logger used for conversion warnings.
func SetLogger(l logger.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	log = logger.OrNop(l)
}

func warn(msg string, fields map[string]interface{}) {
	logMu.RLock()
	defer logMu.RUnlock()
	log.Warn(msg, fields)
}

// Rate returns the INR rate for a source code.
func Rate(code string) (float64, bool) {
	r, ok := rates[strings.ToUpper(strings.TrimSpace(code))]
	return r, ok
}

// Supported lists the convertible source codes in alphabetical order.
func Supported() []string {
	codes := make([]string, 0, len(rates))
	for c := range rates {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Convert returns amount expressed in target. An unsupported source or any
// target other than INR yields 0, which callers must read as "unconvertible".
func Convert(amount float64, source, target string) float64 {
	if !strings.EqualFold(strings.TrimSpace(target), Target) {
		warn("unsupported target currency", map[string]interface{}{"source": source, "target": target})
		return 0
	}
	rate, ok := Rate(source)
	if !ok {
		warn("unsupported source currency", map[string]interface{}{"source": source, "target": target})
		return 0
	}
	return amount * rate
}

var (
	codePattern   = regexp.MustCompile(`(?i)\b(USD|GBP|EUR|AUD|CAD|INR)\b`)
	amountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
	symbolCodes   = []struct {
		symbol string
		code   string
	}{
		{"£", "GBP"},
		{"€", "EUR"},
		{"₹", "INR"},
		{"$", "USD"},
	}
)

// DetectCode finds the currency of a free-text fee. A whole-word ISO code
// wins over a symbol. Returns "" when neither is present.
func DetectCode(text string) string {
	code, _ := detect(text)
	return code
}

// detect returns the code and the byte span of the marker it was read from.
func detect(text string) (string, [2]int) {
	if loc := codePattern.FindStringIndex(text); loc != nil {
		return strings.ToUpper(text[loc[0]:loc[1]]), [2]int{loc[0], loc[1]}
	}
	for _, s := range symbolCodes {
		if i := strings.Index(text, s.symbol); i >= 0 {
			return s.code, [2]int{i, i + len(s.symbol)}
		}
	}
	return "", [2]int{}
}

// ParseAmount extracts the first number in text, ignoring thousands
// separators.
func ParseAmount(text string) (float64, bool) {
	m := amountPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	return parseNumber(m)
}

// amountNear extracts the number closest to the currency marker at
// span, so "2024/25: USD 45,000" reads 45000. On a tie the later number wins.
func amountNear(text string, span [2]int) (float64, bool) {
	best, bestDist := "", -1
	for _, loc := range amountPattern.FindAllStringIndex(text, -1) {
		var d int
		switch {
		case loc[0] >= span[1]:
			d = loc[0] - span[1]
		case loc[1] <= span[0]:
			d = span[0] - loc[1]
		}
		if bestDist < 0 || d <= bestDist {
			best, bestDist = text[loc[0]:loc[1]], d
		}
	}
	if best == "" {
		return 0, false
	}
	return parseNumber(best)
}

func parseNumber(m string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeFee converts a raw fee string to an INR amount with two decimals.
// It returns (NotAvailable, "") when the currency or amount cannot be read or
// the conversion yields 0.
func NormalizeFee(raw string) (string, string) {
	code, span := detect(raw)
	if code == "" {
		return models.NotAvailable, ""
	}
	amount, ok := amountNear(raw, span)
	if !ok {
		return models.NotAvailable, ""
	}

	var inr float64
	if code == Target {
		inr = amount
	} else {
		inr = Convert(amount, code, Target)
	}
	if inr <= 0 {
		return models.NotAvailable, ""
	}
	return fmt.Sprintf("%.2f", inr), Target
}
