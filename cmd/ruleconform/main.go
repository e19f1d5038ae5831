// Command ruleconform checks a rule catalogue for structural and behavioural
// conformance: rule-ID hygiene, message style, example replay and regression
// drift.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ruleconform"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailures = 1
	exitFatal    = 2
)

// exitError carries a process exit code out of a command. Its output has
// already been written.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitFatal)
		}
	}()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitFatal
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	rulesDir   string
	logLevel   string
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags
	var rf runFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Rule catalogue conformance checker",
		Long: `ruleconform validates a rule catalogue before it ships.

It checks:
- rule IDs are unique and well formed
- rule messages do not quote <suggestion> spans
- every rule's example sentences behave as declared
- demo texts still trigger the expected rules

Without a subcommand it runs the full conformance suite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuiteCmd(cmd, &g, &rf, stdout, stderr)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.rulesDir, "rules-dir", "", "Rule directory (default: built-in catalogue)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	addRunFlags(cmd, &rf)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full conformance suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuiteCmd(cmd, &g, &rf, stdout, stderr)
		},
	}
	addRunFlags(runCmd, &rf)
	cmd.AddCommand(runCmd)

	cmd.AddCommand(regressCmd(&g, stdout, stderr))
	cmd.AddCommand(languagesCmd(&g, stdout, stderr))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func addRunFlags(cmd *cobra.Command, rf *runFlags) {
	cmd.Flags().IntVar(&rf.workers, "workers", 0, "Languages checked concurrently (default from config: 1)")
	cmd.Flags().DurationVar(&rf.timeout, "timeout", 0, "Per-check timeout (default from config: 5s)")
	cmd.Flags().BoolVar(&rf.json, "json", false, "Write the report as JSON")
	cmd.Flags().StringVar(&rf.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after each run")
	cmd.Flags().StringVar(&rf.metricsAddr, "metrics-addr", "", "Serve /metrics on this address while watching")
	cmd.Flags().StringVar(&rf.natsURL, "nats", "", "Publish reports to this NATS server")
	cmd.Flags().BoolVar(&rf.watch, "watch", false, "Rerun whenever files under --rules-dir change")
}

func languagesCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the catalogue's languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(g, stderr)
			if err != nil {
				return err
			}
			cat, err := env.openCatalogue()
			if err != nil {
				return err
			}

			for _, l := range cat.Languages() {
				maintained := "maintained"
				if !l.Maintained {
					maintained = "unmaintained"
				}
				fmt.Fprintf(stdout, "%-4s %-12s %-13s %s\n", l.Code, l.Name, maintained, strings.Join(l.RuleFiles, ","))
			}
			return nil
		},
	}
}
