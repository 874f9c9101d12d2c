// cmd/tools/allowed-domains/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"unipal-workers/internal/common/config"
	"unipal-workers/internal/search"
)

var defaultQueries = []string{
	"top universities in the USA for computer science",
	"top universities in the UK for computer science",
	"top universities in Australia for computer science",
	"list of universities in USA",
	"list of universities in UK",
	"list of universities in Australia",
}

func main() {
	out := flag.String("out", "", "output file (defaults to pipeline.allowed_domains_path)")
	queries := flag.String("queries", "", "semicolon-separated search queries")
	limit := flag.Int("limit", 10, "results per query")
	merge := flag.Bool("merge", true, "keep domains already in the output file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	path := *out
	if path == "" {
		path = cfg.Pipeline.AllowedDomainsPath
	}

	// No allow-list yet: the provider must see every hit.
	provider, err := search.NewProvider(cfg.APIs.WebSearch, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating search provider: %v\n", err)
		os.Exit(1)
	}

	qs := defaultQueries
	if *queries != "" {
		qs = strings.Split(*queries, ";")
	}

	domains := map[string]struct{}{}
	if *merge {
		if existing, err := search.LoadAllowList(path); err == nil {
			for _, d := range existing.Domains() {
				domains[d] = struct{}{}
			}
		}
	}

	ctx := context.Background()
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		qctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		results, err := provider.Search(qctx, q, *limit)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  %s: %v\n", q, err)
			continue
		}
		added := 0
		for _, r := range results {
			d, err := search.RegistrableDomain(r.URL)
			if err != nil {
				continue
			}
			if _, ok := domains[d]; !ok {
				domains[d] = struct{}{}
				added++
			}
		}
		fmt.Printf("✅ %s: %d results, %d new domains\n", q, len(results), added)
	}

	list := make([]string, 0, len(domains))
	for d := range domains {
		list = append(list, d)
	}
	sort.Strings(list)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}
	data, err := json.MarshalIndent(search.AllowedDomainsFile{AllowedDomains: list}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling domains: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("\n🎉 Wrote %d domains to %s\n", len(list), path)
}
