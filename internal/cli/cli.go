package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Monitor  *MonitorCommand
	Test     *TestCommand
	Send     *SendCommand
	Classify *ClassifyCommand
	Points   *PointsCommand
	Search   *SearchCommand
	Status   *StatusCommand
	Open     *OpenCommand
	Prune    *PruneCommand
	Purge    *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "bcastmon"
	parser.LongDescription = "Intercept, classify, relay and inspect system broadcasts."

	cmds := &commands{
		Monitor:  &MonitorCommand{globals: &globals, version: version},
		Test:     &TestCommand{globals: &globals, version: version},
		Send:     &SendCommand{globals: &globals, version: version},
		Classify: &ClassifyCommand{globals: &globals, version: version},
		Points:   &PointsCommand{globals: &globals, version: version},
		Search:   &SearchCommand{globals: &globals, version: version},
		Status:   &StatusCommand{globals: &globals, version: version},
		Open:     &OpenCommand{globals: &globals, version: version},
		Prune:    &PruneCommand{globals: &globals, version: version},
		Purge:    &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("monitor", "Receive and print relayed broadcasts", "Run the observer on the configured relay transport and print every received broadcast.", cmds.Monitor)
	parser.AddCommand("test", "Send the test broadcast", "Send the synthetic test broadcast through a hooked sender so it travels the normal relay path.", cmds.Test)
	parser.AddCommand("send", "Send a custom broadcast", "Send a broadcast with the given action and extras through a hooked sender.", cmds.Send)
	parser.AddCommand("classify", "Classify actions", "Print the category, priority and log decision for each action argument.", cmds.Classify)
	parser.AddCommand("points", "List interception points", "List the methods hooked in a process of the given role.", cmds.Points)
	parser.AddCommand("search", "Search archived events", "Search archived events by keyword, with optional filters.", cmds.Search)
	parser.AddCommand("status", "Show archive statistics", "Show archive statistics and a configuration summary.", cmds.Status)
	parser.AddCommand("open", "Print an archived event", "Print a single archived event by ID.", cmds.Open)
	parser.AddCommand("prune", "Apply archive retention", "Remove archived events older than the retention period.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL archived events", "Delete ALL archived events. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("bcastmon %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
