// Package main provides the devlog daemon and CLI.
//
// Devlog tracks development work time from editor and browser heartbeats,
// records sessions in a Notion workspace, and links them to tasks created
// from git commits.
package main

import (
	"flag"
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	// Define global flags.
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	// Parse command.
	flag.Parse()

	// Handle version flag.
	if *showVersion {
		fmt.Printf("devlog %s\n", version)
		return nil
	}

	// Get command.
	args := flag.Args()
	if len(args) == 0 {
		return showUsage()
	}

	command := args[0]

	switch command {
	case "serve":
		return runServeCommand(*configPath, args[1:])
	case "sessions":
		return runSessionsCommand(*configPath, args[1:])
	case "pending":
		return runPendingCommand(*configPath)
	case "config":
		return runConfigCommand(*configPath, args[1:])
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServeCommand runs the serve command.
func runServeCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides configuration)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &serveCommand{
		addr:       *addr,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runSessionsCommand runs the sessions command.
func runSessionsCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	format := fs.String("format", "table", "output format (table, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &sessionsCommand{
		format:     *format,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runPendingCommand runs the pending command.
func runPendingCommand(configPath string) error {
	cmd := &pendingCommand{
		configPath: configPath,
	}
	return cmd.Execute()
}

// runConfigCommand runs the config command.
func runConfigCommand(configPath string, args []string) error {
	cmd := &configCommand{
		configPath: configPath,
	}
	return cmd.Execute(args)
}

// showUsage displays usage information.
func showUsage() error {
	usage := `Devlog - development work time tracking daemon

Usage:
  devlog [flags] <command> [command flags]

Commands:
  serve       Run the tracking daemon (HTTP API + commit watcher)
  sessions    List locally recorded sessions
  pending     List sessions awaiting task linkage
  config      Configuration management (show, path)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Serve Command Flags:
  -addr       Listen address (overrides configuration)

Sessions Command Flags:
  -format     Output format (table, json)

Examples:
  # Run the daemon with the default configuration
  devlog serve

  # Run the daemon on a different port
  devlog serve -addr :8090

  # List recorded sessions
  devlog sessions

  # List recorded sessions as JSON
  devlog sessions -format json

  # Show sessions awaiting linkage to a task
  devlog pending

  # Show the effective configuration
  devlog config show

Environment:
  DEVLOG_WORKSPACE_TOKEN   Workspace API token
  DEVLOG_PROJECTS_DB       Projects database ID
  DEVLOG_TASKS_DB          Tasks database ID
  DEVLOG_SESSIONS_DB       Sessions database ID

Version: %s
`

	fmt.Printf(usage, version)
	return nil
}
