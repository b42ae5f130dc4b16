package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trafficslice/core"
	"trafficslice/storage"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// maxSeedFileSize guards against loading huge fixture files into memory
const maxSeedFileSize = 10 * 1024 * 1024

// validateFilePath rejects paths that escape the current directory.
// Encoded traversal sequences are decoded before checking.
func validateFilePath(filename string) error {
	decoded, err := url.QueryUnescape(filename)
	if err != nil {
		decoded = filename
	}
	if strings.Contains(decoded, "..") || strings.Contains(filename, "..") {
		return fmt.Errorf("path traversal detected: '..' not allowed in file path")
	}

	absPath, err := filepath.Abs(filepath.Clean(decoded))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if strings.HasPrefix(absPath, filepath.Clean(os.TempDir())) {
		return nil
	}
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	rel, err := filepath.Rel(workDir, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("file path must be within current directory")
	}
	return nil
}

// loadAlertsFile reads a JSON or YAML list of alerts
func loadAlertsFile(path string) ([]core.Alert, error) {
	if err := validateFilePath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxSeedFileSize {
		return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", path, maxSeedFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var alerts []core.Alert
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &alerts)
	case ".json":
		err = json.Unmarshal(data, &alerts)
	default:
		return nil, fmt.Errorf("unsupported fixture format %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return alerts, nil
}

// validateAlerts checks fixture rows before anything is written
func validateAlerts(alerts []core.Alert) error {
	for i, a := range alerts {
		if !core.ValidSeverity(a.Severity) {
			return fmt.Errorf("alert %d: severity %d outside %d-%d", i, a.Severity, core.MinSeverity, core.MaxSeverity)
		}
		if a.Timestamp == "" {
			return fmt.Errorf("alert %d: timestamp is required", i)
		}
		if a.ApplicationFrom == "" || a.AlertName == "" {
			return fmt.Errorf("alert %d: alert_name and application_from are required", i)
		}
	}
	return nil
}

var (
	generatedApps  = []string{"billing", "checkout", "inventory", "auth-gateway", "reporting"}
	generatedTypes = []string{"exfiltration", "beaconing", "policy", "scan"}
	generatedDests = []string{"files.example.com", "c2.example.net", "db.internal", "cdn.example.org"}
	generatedNames = map[string]string{
		"exfiltration": "Large outbound transfer",
		"beaconing":    "Periodic callback",
		"policy":       "Disallowed destination",
		"scan":         "Port sweep",
	}
)

// generateAlerts returns n synthetic alerts, one per hour going back from now
func generateAlerts(n int, now time.Time) []core.Alert {
	alerts := make([]core.Alert, n)
	for i := range alerts {
		typ := generatedTypes[i%len(generatedTypes)]
		dest := generatedDests[(i/2)%len(generatedDests)]
		alerts[i] = core.Alert{
			AlertName:         generatedNames[typ],
			Message:           fmt.Sprintf("%s traffic to %s", typ, dest),
			ApplicationFrom:   generatedApps[i%len(generatedApps)],
			DestinationDomain: dest,
			Type:              typ,
			Severity:          (i*7)%core.MaxSeverity + 1,
			Timestamp:         now.Add(-time.Duration(i) * time.Hour).UTC().Format(time.RFC3339),
		}
	}
	return alerts
}

// promptYesNo prompts for a yes/no response.
func promptYesNo(reader *bufio.Reader, out io.Writer, prompt string, defaultValue bool) bool {
	defaultStr := "N"
	if defaultValue {
		defaultStr = "Y"
	}

	for {
		fmt.Fprintf(out, "%s [y/N] (default: %s): ", prompt, defaultStr)
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return defaultValue
		}
		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "":
			return defaultValue
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		errorColor.Fprintln(out, "Please answer 'y' or 'n'")
		if err != nil {
			return defaultValue
		}
	}
}

// newSeedCmd creates the 'seed' subcommand
func newSeedCmd() *cobra.Command {
	var (
		file     string
		generate int
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture alerts into the store",
		Long: `Create the alerts table if needed and insert fixture alerts, either from a
JSON/YAML file or generated synthetically. Intended for development stores.`,
		Example: `  trafficslice query seed --file testdata/alerts.yaml
  trafficslice query seed --generate 500 --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (generate <= 0) {
				return fmt.Errorf("exactly one of --file or --generate is required")
			}

			var alerts []core.Alert
			if file != "" {
				var err error
				if alerts, err = loadAlertsFile(file); err != nil {
					return err
				}
			} else {
				alerts = generateAlerts(generate, time.Now())
			}
			if err := validateAlerts(alerts); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.close()

			seeder, ok := session.store.Unwrap().(storage.Seeder)
			if !ok {
				return fmt.Errorf("the configured store does not support seeding")
			}
			if err := seeder.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to create alerts schema: %w", err)
			}

			existing, err := session.services.Lookups.GetTotalAlertCount(ctx)
			if err != nil {
				return fmt.Errorf("failed to count alerts: %w", err)
			}
			if existing > 0 && !yes {
				reader := bufio.NewReader(cmd.InOrStdin())
				prompt := fmt.Sprintf("Store already holds %d alerts. Add %d more?", existing, len(alerts))
				if !promptYesNo(reader, cmd.ErrOrStderr(), prompt, false) {
					warningColor.Fprintln(cmd.ErrOrStderr(), "Seeding cancelled")
					return nil
				}
			}

			if _, err := withSpinner(cmd, fmt.Sprintf(" Inserting %d alerts...", len(alerts)), func() (struct{}, error) {
				return struct{}{}, seeder.SeedAlerts(ctx, alerts)
			}); err != nil {
				return fmt.Errorf("failed to seed alerts: %w", err)
			}

			result := map[string]int64{"inserted": int64(len(alerts)), "total": existing + int64(len(alerts))}
			if handled, err := outputStructured(cmd, result); handled {
				return err
			}
			if !quiet {
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Inserted %d alerts (%d total)\n", result["inserted"], result["total"])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON or YAML file holding a list of alerts")
	cmd.Flags().IntVar(&generate, "generate", 0, "Number of synthetic alerts to generate")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask before adding to a non-empty store")

	return cmd
}
