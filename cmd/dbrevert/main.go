package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"dbrevert/internal/app"
	"dbrevert/internal/config"
	"dbrevert/internal/revert"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "dbrevert",
	Short: "Roll database files back to the state before a failed migration",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitRoot string

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, configInitRoot, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID:  %s\n", hostID)
		fmt.Printf("Root Dir: %s\n", cfg.RootDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:   %s\n", cfg.HostID)
		fmt.Printf("Root Dir:  %s\n", cfg.RootDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Event Log: %s\n", cfg.Tracking.EventLog)
		fmt.Printf("Sentinels: %s\n", strings.Join(cfg.Tracking.Sentinels, ", "))
		return nil
	},
}

// keys command

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}

		if err := a.SetupKeys(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// detect command

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Scan backups for evidence of a failed migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Detect")
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.Detect()
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No confirmed migration found.")
			return nil
		}

		fmt.Printf("%d confirmed migration event(s):\n\n", len(events))
		for _, ev := range events {
			fmt.Printf("  trigger %s  reference %s  (%d corroborating sentinel backups, earliest: %s)\n",
				ev.Trigger.Token(), ev.Reference.Token(), ev.SentinelCount, ev.ReferenceSource)
		}
		fmt.Println("\nRun 'dbrevert restore --at <reference>' to roll back to one of these points.")
		return nil
	},
}

// restore command

var (
	restoreAt      string
	restorePreview bool
	restoreYes     bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Roll every tracked database back to the reference timepoint",
	Long: `Restore classifies every tracked database file against the reference
timepoint and swaps in the first backup taken at or after it. Without
--at, a single confirmed migration event must be detectable. Stop the
owning application before running this.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if !restorePreview && !restoreYes {
			ok, err := confirm("This will modify database files in place. Continue? [y/N] ")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		summary, results, err := a.Restore(restoreAt, restorePreview)
		if err != nil {
			if errors.Is(err, revert.ErrNoMigrationFound) {
				return fmt.Errorf("%w: supply a reference with --at to proceed anyway", err)
			}
			return err
		}

		for _, res := range results {
			line := fmt.Sprintf("%-9s %s", res.Outcome, res.Path)
			if res.Backup != "" {
				line += fmt.Sprintf("  <- %s", res.Backup)
			}
			fmt.Println(line)
		}

		verb := "Done."
		if restorePreview {
			verb = "Preview only — nothing was changed."
		}
		fmt.Printf("\n%s restored=%d kept=%d archived=%d deleted=%d skipped=%d\n",
			verb, summary.Restored, summary.Kept, summary.Archived, summary.Deleted, summary.Skipped)
		return nil
	},
}

// history command

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past restore runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.Runs(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			mode := r.Mode
			if r.Preview {
				mode += " (preview)"
			}
			fmt.Printf("%s  %s  ref=%s  %s  restored=%d kept=%d archived=%d deleted=%d skipped=%d\n",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.ID[:8], r.Reference, mode,
				r.Summary.Restored, r.Summary.Kept, r.Summary.Archived, r.Summary.Deleted, r.Summary.Skipped)
		}
		return nil
	},
}

// confirm asks for interactive confirmation on stdin. Non-interactive
// sessions refuse rather than assume consent.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return false, fmt.Errorf("not a terminal: use --yes to confirm non-interactively")
	}
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// readNewPassphrase prompts twice for a new passphrase without echo.
func readNewPassphrase() (string, error) {
	fmt.Print("Passphrase: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Print("Confirm passphrase: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(first), nil
}

func init() {
	configInitCmd.Flags().StringVar(&configInitRoot, "root", ".", "working tree holding the database files")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	restoreCmd.Flags().StringVar(&restoreAt, "at", "", "reference timepoint (YYYYMMDD_HHMMSS), bypasses detection")
	restoreCmd.Flags().BoolVar(&restorePreview, "preview", false, "classify everything but change nothing")
	restoreCmd.Flags().BoolVar(&restoreYes, "yes", false, "skip the interactive confirmation")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
}
