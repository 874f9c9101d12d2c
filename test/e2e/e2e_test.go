// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipal-workers/internal/api"
	"unipal-workers/internal/app"
	"unipal-workers/internal/common/aws"
	"unipal-workers/internal/common/config"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
	"unipal-workers/internal/pipeline"

	aas "unipal-workers/internal/workers/application/aggregate-application-state"
	bdc "unipal-workers/internal/workers/application/build-document-checklist"
	lvi "unipal-workers/internal/workers/application/lookup-visa-info"
	ss "unipal-workers/internal/workers/application/search-scholarships"
	sl "unipal-workers/internal/workers/communication/send-shortlist"
	bc "unipal-workers/internal/workers/recommendation/build-candidates"
	ru "unipal-workers/internal/workers/recommendation/rank-universities"
	vsp "unipal-workers/internal/workers/student/validate-student-profile"
)

// ==========================
// Fake Internet
// ==========================

const (
	mitURL     = "https://www.mit.edu/graduate/admissions"
	oxfordURL  = "https://www.ox.ac.uk/admissions/graduate"
	blockedURL = "https://example.org/top-universities"
)

const mitReply = `University Name: Massachusetts Institute of Technology
Country: USA
Tuition Fees: USD 50,000
Eligibility Criteria: CGPA 8.0, IELTS 6.5
Deadlines: December 15
Course Curriculum: MS in Data Science
Scholarship Options: Research assistantships`

const oxfordReply = `{"universityName": "University of Oxford", "country": "UK",
"tuitionFees": "not published", "eligibilityCriteria": "A strong academic record",
"deadlines": "January 10", "courseCurriculum": "MSc Computer Science",
"scholarshipOptions": "Clarendon Fund"}`

const scholarshipReply = `[
  {"name": "Fulbright-Nehru Master's Fellowship", "description": "Funding for graduate study in the USA", "eligibility": "Indian citizens with a bachelor's degree", "amount": "Full tuition"},
  {"name": "Inlaks Shivdasani Scholarship", "description": "Support for study abroad", "eligibility": "Under 30 with a strong academic record", "amount": "USD 100,000"}
]`

type internet struct {
	server      *httptest.Server
	searches    int32
	completions int32
	pages       int32
}

// routingTransport sends every request to one test server and keeps the
// original host in the Host header, so allow-listing still sees real domains.
type routingTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *routingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Host = req.URL.Host
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	return t.base.RoundTrip(r)
}

func newInternet(t *testing.T) *internet {
	t.Helper()
	in := &internet{}
	in.server = httptest.NewServer(http.HandlerFunc(in.serve))
	t.Cleanup(in.server.Close)

	target, err := url.Parse(in.server.URL)
	require.NoError(t, err)

	original := http.DefaultTransport
	http.DefaultTransport = &routingTransport{target: target, base: original}
	t.Cleanup(func() { http.DefaultTransport = original })
	return in
}

func (in *internet) serve(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}

	switch host {
	case "serpapi.com":
		atomic.AddInt32(&in.searches, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"organic_results": []map[string]string{
				{"title": "MIT Graduate Admissions", "link": mitURL, "snippet": "Apply to MIT"},
				{"title": "Top universities list", "link": blockedURL, "snippet": "A ranking blog"},
				{"title": "Oxford Graduate Admissions", "link": oxfordURL, "snippet": "Apply to Oxford"},
			},
		})
	case "llm.test":
		atomic.AddInt32(&in.completions, 1)
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text := ""
		switch {
		case strings.Contains(req.Prompt, "Recommend the top 3 scholarships"):
			text = scholarshipReply
		case strings.Contains(req.Prompt, "Massachusetts Institute of Technology"):
			text = mitReply
		case strings.Contains(req.Prompt, "University of Oxford"):
			text = oxfordReply
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	case "www.mit.edu":
		atomic.AddInt32(&in.pages, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><script>var x = 1;</script></head><body><nav>Menu</nav>
<main><h1>Massachusetts Institute of Technology</h1><p>Graduate admissions for the MS in Data Science.</p></main></body></html>`)
	case "www.ox.ac.uk":
		atomic.AddInt32(&in.pages, 1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><article><h1>University of Oxford</h1><p>Graduate study at Oxford.</p></article></body></html>`)
	default:
		http.NotFound(w, r)
	}
}

// ==========================
// Test Helpers
// ==========================

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	allow := filepath.Join(dir, "allowed_websites.json")
	require.NoError(t, os.WriteFile(allow, []byte(`{"allowed_domains":["mit.edu","ox.ac.uk","tum.de"]}`), 0o644))
	visaPath := filepath.Join(dir, "visa_info.json")
	require.NoError(t, os.WriteFile(visaPath, []byte(`[
  {"country": "USA", "requirements": ["Form I-20", "F-1 visa interview"], "fees": "185", "currency": "USD"},
  {"country": "UK", "requirements": ["CAS letter"], "fees": "490", "currency": "GBP"}
]`), 0o644))

	cfg := &config.Config{}
	cfg.App.Name = "unipal-e2e"
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLite.Path = filepath.Join(dir, "unipal.db")
	cfg.APIs.GenAI.Provider = "http"
	cfg.APIs.GenAI.BaseURL = "https://llm.test"
	cfg.APIs.GenAI.Timeout = 5000
	cfg.APIs.WebSearch.Provider = "serpapi"
	cfg.APIs.WebSearch.BaseURL = "https://serpapi.com/search"
	cfg.APIs.WebSearch.APIKey = "test-key"
	cfg.APIs.WebSearch.MaxResults = 5
	cfg.Pipeline.AllowedDomainsPath = allow
	cfg.Pipeline.VisaInfoPath = visaPath
	cfg.Pipeline.SnapshotPath = filepath.Join(dir, "students.json")
	cfg.Pipeline.ExportDir = filepath.Join(dir, "exports")
	cfg.Pipeline.TopN = 5
	cfg.Pipeline.MaxChars = 12000
	cfg.Pipeline.ExtractionAttempts = 1
	cfg.Pipeline.BuilderWorkers = 1
	cfg.Pipeline.ReplaceExisting = true
	return cfg
}

func createTestProfile() models.StudentProfile {
	ielts := 7.0
	return models.StudentProfile{
		Name:                      "Asha Rao",
		ContactInfo:               "asha@example.com",
		Marks10th:                 92,
		Marks12th:                 89,
		BtechCGPA:                 8.5,
		IELTSScore:                &ielts,
		WorkExperience:            "1 year",
		PreferredCountries:        []string{"USA"},
		BtechBranch:               "Computer Science",
		InterestedFieldForMasters: "Data Science",
	}
}

func buildComponents(t *testing.T, cfg *config.Config) *app.Components {
	t.Helper()
	c, err := app.Build(context.Background(), cfg, app.Options{ServiceName: "unipal-e2e"}, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Unavailable)
	require.NotNil(t, c.Runner)
	return c
}

func assertShortlist(t *testing.T, universities []models.University) {
	t.Helper()
	require.Len(t, universities, 2)

	mit := universities[0]
	assert.Equal(t, "Massachusetts Institute of Technology", mit.Name)
	assert.Equal(t, mitURL, mit.URL)
	assert.Equal(t, "USA", mit.Country)
	assert.Equal(t, float64(28), mit.MatchScore)
	assert.Equal(t, "4100000.00", mit.TuitionFees)
	assert.Equal(t, "INR", mit.Currency)

	oxford := universities[1]
	assert.Equal(t, "University of Oxford", oxford.Name)
	assert.Equal(t, "UK", oxford.Country)
	assert.Equal(t, float64(3), oxford.MatchScore)
	assert.Equal(t, models.NotAvailable, oxford.TuitionFees)
}

// ==========================
// Pipeline Run
// ==========================

func TestE2E_RecommendationPipeline(t *testing.T) {
	in := newInternet(t)
	cfg := createTestConfig(t)
	c := buildComponents(t, cfg)

	session := pipeline.NewSession(createTestProfile())
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	state, err := c.Runner.Run(ctx, session)
	require.NoError(t, err)

	assertShortlist(t, state.Universities)

	require.NotNil(t, state.VisaInfo)
	assert.Equal(t, "USA", state.VisaInfo.Country)
	assert.Contains(t, state.VisaInfo.Requirements, "Form I-20")

	require.Len(t, state.Scholarships, 2)
	assert.Equal(t, "Fulbright-Nehru Master's Fellowship", state.Scholarships[0].Name)

	assert.NotEmpty(t, state.Documents)
	require.NotNil(t, state.StudentInfo)
	assert.Equal(t, "asha@example.com", state.StudentInfo.ContactInfo)
	assert.Equal(t, 100, state.ProgressPercentage)

	// One search per preferred country; the blocked domain is never fetched.
	assert.Equal(t, int32(1), atomic.LoadInt32(&in.searches))
	assert.Equal(t, int32(2), atomic.LoadInt32(&in.pages))
	assert.Equal(t, int32(3), atomic.LoadInt32(&in.completions))

	saved, err := c.Students.Get(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", saved.Name)

	stages := map[string]string{}
	for _, m := range session.MessagesSnapshot() {
		stages[m.Stage] = m.Level
	}
	assert.Equal(t, pipeline.LevelSuccess, stages[pipeline.StageValidate])
	assert.Equal(t, pipeline.LevelSuccess, stages[pipeline.StageSave])
	assert.Equal(t, pipeline.LevelSuccess, stages[pipeline.StageRank])
	assert.Equal(t, pipeline.LevelSuccess, stages[pipeline.StageVisa])
}

func TestE2E_InvalidProfileStopsBeforeSearch(t *testing.T) {
	in := newInternet(t)
	c := buildComponents(t, createTestConfig(t))

	profile := createTestProfile()
	profile.ContactInfo = ""
	profile.BtechCGPA = 11

	session := pipeline.NewSession(profile)
	defer session.Close()

	_, err := c.Runner.Run(context.Background(), session)
	require.Error(t, err)
	require.NotNil(t, session.Validation)
	assert.False(t, session.Validation.Valid)
	assert.Zero(t, atomic.LoadInt32(&in.searches))
}

// ==========================
// Worker Chain
// ==========================

type fakeSES struct {
	sent []*ses.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.sent = append(f.sent, params)
	return &ses.SendEmailOutput{MessageId: awssdk.String("msg-1")}, nil
}

// variables mimics the process scope: each job reads the merged variables
// and its output is merged back.
type variables map[string]json.RawMessage

func (v variables) merge(t *testing.T, output interface{}) {
	t.Helper()
	raw, err := json.Marshal(output)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for k, val := range fields {
		v[k] = val
	}
}

func (v variables) decode(t *testing.T, input interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, input))
}

func TestE2E_WorkerChain(t *testing.T) {
	newInternet(t)
	cfg := createTestConfig(t)
	c := buildComponents(t, cfg)
	log := logger.NewTestLogger(t)
	ctx := context.Background()

	vars := variables{}
	vars.merge(t, map[string]interface{}{"studentProfile": createTestProfile()})

	// validate-student-profile
	var vIn vsp.Input
	vars.decode(t, &vIn)
	vOut, err := vsp.NewHandler(&vsp.Config{Timeout: 5 * time.Second}, c.Students, c.Snapshot, log).Execute(ctx, &vIn)
	require.NoError(t, err)
	assert.True(t, vOut.ProfileValid)
	assert.True(t, vOut.Saved)
	vars.merge(t, vOut)

	// build-candidates
	var bIn bc.Input
	vars.decode(t, &bIn)
	bOut, err := bc.NewHandler(&bc.Config{Timeout: 30 * time.Second}, c.Builder, log).Execute(ctx, &bIn)
	require.NoError(t, err)
	assert.Equal(t, 2, bOut.CandidateCount)
	vars.merge(t, bOut)

	// rank-universities
	var rIn ru.Input
	vars.decode(t, &rIn)
	rOut, err := ru.NewHandler(&ru.Config{Timeout: 5 * time.Second, CatalogLimit: 10}, c.Ranker, nil, log).Execute(ctx, &rIn)
	require.NoError(t, err)
	assert.Equal(t, ru.SourceCandidates, rOut.Source)
	assertShortlist(t, rOut.Universities)
	vars.merge(t, rOut)

	// lookup-visa-info
	var lIn lvi.Input
	vars.decode(t, &lIn)
	lOut, err := lvi.NewHandler(&lvi.Config{Timeout: 5 * time.Second}, c.Visa, log).Execute(ctx, &lIn)
	require.NoError(t, err)
	assert.True(t, lOut.Found)
	assert.Equal(t, "USA", lOut.VisaCountry)
	vars.merge(t, lOut)

	// search-scholarships
	var sIn ss.Input
	vars.decode(t, &sIn)
	sOut, err := ss.NewHandler(&ss.Config{Timeout: 10 * time.Second}, c.Scholarships, log).Execute(ctx, &sIn)
	require.NoError(t, err)
	assert.Equal(t, 2, sOut.ScholarshipCount)
	vars.merge(t, sOut)

	// build-document-checklist
	var dIn bdc.Input
	vars.decode(t, &dIn)
	dOut, err := bdc.NewHandler(bdc.LoadConfig(), log).Execute(ctx, &dIn)
	require.NoError(t, err)
	assert.NotZero(t, dOut.TotalCount)
	vars.merge(t, dOut)

	// aggregate-application-state
	var aIn aas.Input
	vars.decode(t, &aIn)
	aOut, err := aas.NewHandler(aas.LoadConfig(), log).Execute(ctx, &aIn)
	require.NoError(t, err)
	assert.Equal(t, 100, aOut.ProgressPercentage)
	vars.merge(t, aOut)

	// send-shortlist
	sesAPI := &fakeSES{}
	slCfg := &sl.Config{EmailEnabled: true, FromEmail: "shortlist@unipal.test", Timeout: 5 * time.Second}
	var nIn sl.Input
	vars.decode(t, &nIn)
	nOut, err := sl.NewHandler(slCfg, aws.NewSESClientWithAPI(sesAPI, slCfg.FromEmail), nil, log).Execute(ctx, &nIn)
	require.NoError(t, err)
	assert.True(t, nOut.Sent)
	assert.Equal(t, sl.ChannelEmail, nOut.Channel)
	assert.Equal(t, "msg-1", nOut.MessageID)

	require.Len(t, sesAPI.sent, 1)
	assert.Equal(t, []string{"asha@example.com"}, sesAPI.sent[0].Destination.ToAddresses)
	assert.Contains(t, awssdk.ToString(sesAPI.sent[0].Message.Body.Text.Data), "Massachusetts Institute of Technology")
}

// ==========================
// HTTP API
// ==========================

func TestE2E_RecommendEndpoint(t *testing.T) {
	newInternet(t)
	cfg := createTestConfig(t)
	c := buildComponents(t, cfg)

	srv := api.NewServer(api.Options{
		Runner:    c.Runner,
		Students:  c.Students,
		Snapshot:  c.Snapshot,
		ExportDir: cfg.Pipeline.ExportDir,
		Logger:    logger.NewTestLogger(t),
	})

	body, err := json.Marshal(createTestProfile())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations?export=xlsx", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		SessionID        string                  `json:"sessionId"`
		ApplicationState models.ApplicationState `json:"applicationState"`
		ExportPath       string                  `json:"exportPath"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assertShortlist(t, resp.ApplicationState.Universities)
	require.NotEmpty(t, resp.ExportPath)
	_, err = os.Stat(resp.ExportPath)
	assert.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/students/asha@example.com", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Asha Rao")
}
