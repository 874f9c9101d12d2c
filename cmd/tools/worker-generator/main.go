// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"unipal-workers/pkg/registry"
)

// WorkerData feeds the scaffold templates.
type WorkerData struct {
	Path         string
	PackageName  string
	TaskType     string
	DisplayName  string
	Description  string
	InputFields  []Field
	OutputFields []Field
	ErrorCodes   []string
}

type Field struct {
	Name        string
	Type        string
	JSONName    string
	Description string
	Required    bool
}

// goType maps a JSON schema property to a Go type. Objects and arrays stay
// loosely typed; the generated models are meant to be edited.
func goType(prop map[string]interface{}) string {
	switch prop["type"] {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "array":
		if items, ok := prop["items"].(map[string]interface{}); ok {
			if t := goType(items); t != "interface{}" {
				return "[]" + t
			}
		}
		return "[]interface{}"
	case "object":
		return "map[string]interface{}"
	}
	return "interface{}"
}

// fieldsFromSchema turns the properties of a JSON schema into struct fields,
// sorted by name so generated files are stable.
func fieldsFromSchema(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if list, ok := schema["required"].([]interface{}); ok {
		for _, r := range list {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	fields := make([]Field, 0, len(props))
	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		desc, _ := prop["description"].(string)
		fields = append(fields, Field{
			Name:        exportedName(name),
			Type:        goType(prop),
			JSONName:    name,
			Description: desc,
			Required:    required[name],
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].JSONName < fields[j].JSONName })
	return fields
}

// exportedName turns camelCase or kebab-case into an exported identifier.
func exportedName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

func packageName(id string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(id))
}

func newWorkerData(a *registry.Activity, dir string) WorkerData {
	return WorkerData{
		Path:         filepath.ToSlash(dir),
		PackageName:  packageName(a.ID),
		TaskType:     a.TaskType,
		DisplayName:  a.DisplayName,
		Description:  a.Description,
		InputFields:  fieldsFromSchema(a.InputSchema),
		OutputFields: fieldsFromSchema(a.OutputSchema),
		ErrorCodes:   a.ErrorCodes,
	}
}

const configTemplate = `// {{ .Path }}/config.go
package {{ .PackageName }}

import (
	"time"

	"unipal-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
	}
}
`

const modelsTemplate = `// {{ .Path }}/models.go
package {{ .PackageName }}

type Input struct {
{{- range .InputFields }}
	{{ .Name }} {{ .Type }} ` + "`json:\"{{ .JSONName }}{{ if not .Required }},omitempty{{ end }}\"`" + `{{ if .Description }} // {{ .Description }}{{ end }}
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .Name }} {{ .Type }} ` + "`json:\"{{ .JSONName }}\"`" + `{{ if .Description }} // {{ .Description }}{{ end }}
{{- end }}
}
`

const handlerTemplate = `// {{ .Path }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"time"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "{{ .TaskType }}"
)
{{ if .Description }}
// Handler {{ lowerFirst .Description }}
{{- end }}
type Handler struct {
	config *Config
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidJobInputError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	// TODO: implement {{ .TaskType }}{{ range .ErrorCodes }}; may fail with {{ . }}{{ end }}
	return &Output{}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.AsStandard(err).Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const testTemplate = `// {{ .Path }}/handler_test.go
package {{ .PackageName }}

import (
	"context"
	"testing"
	"time"

	"unipal-workers/internal/common/logger"

	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	require.NotNil(t, out)
}
`

var files = []struct {
	name string
	tmpl string
}{
	{"config.go", configTemplate},
	{"models.go", modelsTemplate},
	{"handler.go", handlerTemplate},
	{"handler_test.go", testTemplate},
}

var funcMap = template.FuncMap{
	"lowerFirst": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToLower(s[:1]) + s[1:]
	},
}

// render executes one template and gofmts the result.
func render(name, tmpl string, data WorkerData) ([]byte, error) {
	t, err := template.New(name).Funcs(funcMap).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return src, nil
}

// generate writes the scaffold for activity under root and returns the
// worker directory. Existing files are left alone unless force is set.
func generate(a *registry.Activity, root string, force bool) (string, error) {
	dir := filepath.Join(root, a.Category, a.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	data := newWorkerData(a, filepath.Join("internal", "workers", a.Category, a.ID))

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil && !force {
			fmt.Printf("- skipped %s (exists)\n", path)
			continue
		}
		src, err := render(f.name, f.tmpl, data)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("✓ generated %s\n", path)
	}
	return dir, nil
}

func main() {
	activity := flag.String("activity", "", "Activity ID from the registry (e.g., lookup-visa-info)")
	outputDir := flag.String("output", "./internal/workers", "Root directory for generated workers")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *activity == "" {
		fmt.Fprintln(os.Stderr, "Error: -activity is required")
		flag.Usage()
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading registry: %v\n", err)
		os.Exit(1)
	}
	a, ok := reg.Find(*activity)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: activity %q not found in %s\n", *activity, *registryPath)
		os.Exit(1)
	}

	dir, err := generate(a, *outputDir, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Worker scaffold generated at %s\n", dir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement execute in handler.go\n")
	fmt.Printf("  2. Register the worker in cmd/worker-manager/main.go\n")
	fmt.Printf("  3. Add a workers.%s entry to configs/config.yaml\n", a.TaskType)
	fmt.Printf("  4. Mark the activity in-progress: registry-updater update -id %s -field status -value in-progress\n", a.ID)
}
