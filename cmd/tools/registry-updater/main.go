// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"unipal-workers/internal/common/config"
	"unipal-workers/pkg/registry"
)

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	idAdd := addCmd.String("id", "", "Activity ID (e.g., rank-universities)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Rank Universities)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (student, recommendation, application, communication)")
	taskType := addCmd.String("taskType", "", "Camunda Task Type (defaults to id)")
	version := addCmd.String("version", "1.0.0", "Version")
	implStatus := addCmd.String("status", "planned", "Implementation Status (planned, in-progress, completed, verified)")
	timeout := addCmd.String("timeout", "30s", "Job timeout")
	retries := addCmd.Int("retries", 3, "Job retries")

	// Update command flags
	updatePath := updateCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, etc.)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	checkWorkers := validateCmd.Bool("workers", false, "Also require an entry for every worker in the config")

	listPath := listCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *category == "" {
			fmt.Println("Error: id, displayName, description and category are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if *taskType == "" {
			*taskType = *idAdd
		}
		activity := registry.Activity{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			TaskType:             *taskType,
			ImplementationStatus: *implStatus,
			InputSchema:          map[string]interface{}{},
			OutputSchema:         map[string]interface{}{},
			ErrorCodes:           []string{},
			Timeout:              *timeout,
			Retries:              *retries,
			Workflows:            []string{"university-recommendation"},
			Tags:                 []string{},
		}
		if err := addActivity(*addPath, activity); err != nil {
			fmt.Printf("Error adding activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added activity: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(*validatePath, *checkWorkers); err != nil {
			fmt.Printf("Registry validation failed:\n%v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*listPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		for _, a := range reg.Activities {
			fmt.Printf("%-30s %-15s %-12s %s\n", a.TaskType, a.Category, a.ImplementationStatus, a.Timeout)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addActivity(path string, activity registry.Activity) error {
	reg, err := registry.LoadOrNew(path)
	if err != nil {
		return err
	}
	if err := reg.Add(activity); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	return reg.Save(path)
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Update(id, field, value); err != nil {
		return err
	}
	return reg.Save(path)
}

func validateRegistry(path string, checkWorkers bool) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	if checkWorkers {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		taskTypes := make([]string, 0, len(cfg.Workers))
		for t := range cfg.Workers {
			taskTypes = append(taskTypes, t)
		}
		sort.Strings(taskTypes)
		if missing := reg.Missing(taskTypes); len(missing) > 0 {
			return fmt.Errorf("workers without a registry entry: %v", missing)
		}
	}

	fmt.Printf("Found %d activities.\n", len(reg.Activities))
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new activity to the registry
  update   Update an existing activity's field
  validate Validate the registry file
  list     List registered activities
  help     Show this help message

Examples:
  registry-updater add -id rank-universities -displayName "Rank Universities" -description "Scores and ranks candidate universities" -category recommendation
  registry-updater update -id rank-universities -field status -value completed
  registry-updater validate -path configs/activity-registry.json -workers

Use 'registry-updater <command> -h' for more information about a command.
` + "\n")
}
