// cmd/unipal/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"unipal-workers/internal/app"
	"unipal-workers/internal/common/config"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/export"
	"unipal-workers/internal/models"
	"unipal-workers/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "config file (defaults to configs/config.yaml)")
		profilePath = flag.String("profile", "", "student profile JSON file, or - for stdin (required)")
		out         = flag.String("out", "", "output XLSX path (defaults to <export_dir>/<session id>.xlsx)")
		noExport    = flag.Bool("no-export", false, "skip the spreadsheet")
		asJSON      = flag.Bool("json", false, "print the application state as JSON")
		clearAll    = flag.Bool("clear", false, "delete all saved students and exit")
		timeout     = flag.Duration("timeout", 15*time.Minute, "overall run timeout")
	)
	flag.Parse()

	if *profilePath == "" && !*clearAll {
		printError("Error: --profile is required\n")
		flag.Usage()
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, "console", "stderr")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	components, err := app.Build(ctx, cfg, app.Options{ServiceName: "unipal-cli"}, log)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	if *clearAll {
		n, err := components.Students.Clear(ctx)
		if err != nil {
			printError("Error: clear students: %v\n", err)
			os.Exit(1)
		}
		if err := components.Snapshot.Clear(); err != nil {
			printError("Error: clear snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %d students\n", n)
		return
	}

	if components.Runner == nil {
		printError("Error: pipeline unavailable: %v\n", components.Unavailable)
		os.Exit(1)
	}

	profile, err := readProfile(*profilePath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	session := pipeline.NewSession(profile)
	defer session.Close()

	state, runErr := components.Runner.Run(ctx, session)
	for _, m := range session.MessagesSnapshot() {
		fmt.Printf("[%-7s] %-12s %s\n", m.Level, m.Stage, m.Text)
	}
	if runErr != nil {
		if session.Validation != nil {
			for _, fe := range session.Validation.Errors {
				printError("  %s: %s\n", fe.Field, fe.Message)
			}
		}
		printError("Error: %v\n", runErr)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		printShortlist(state)
	}

	if *noExport {
		return
	}
	path := *out
	if path == "" {
		path = filepath.Join(cfg.Pipeline.ExportDir, session.ID)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	written, err := export.WriteShortlist(path, state)
	if err != nil {
		printError("Error: export: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Shortlist written to %s\n", written)
}

func readProfile(path string) (models.StudentProfile, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.StudentProfile{}, fmt.Errorf("open profile: %w", err)
		}
		defer f.Close()
		r = f
	}

	var p models.StudentProfile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return models.StudentProfile{}, fmt.Errorf("parse profile: %w", err)
	}
	return p, nil
}

func printShortlist(state models.ApplicationState) {
	fmt.Printf("\nApplication progress: %d%%\n", state.ProgressPercentage)
	if len(state.Universities) == 0 {
		fmt.Println("No matching universities found.")
		return
	}
	fmt.Println("\nRecommended universities:")
	for i, u := range state.Universities {
		fmt.Printf("%d. %s (%s) score %.0f, fees %s\n", i+1, u.Name, u.Country, u.MatchScore, u.TuitionFees)
	}
	if state.VisaInfo != nil {
		fmt.Printf("\nVisa (%s): fees %s %s\n", state.VisaInfo.Country, state.VisaInfo.Fees, state.VisaInfo.Currency)
	}
	if len(state.Scholarships) > 0 {
		fmt.Println("\nScholarships:")
		for _, s := range state.Scholarships {
			fmt.Printf("- %s: %s\n", s.Name, s.Amount)
		}
	}
}
