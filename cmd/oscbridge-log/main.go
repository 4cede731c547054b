// Command oscbridge-log is a tool for viewing and analyzing oscbridge
// protocol log files.
//
// Log files are created by running oscbridge with the -log-file flag.
//
// Usage:
//
//	oscbridge-log <command> [flags] <file.olog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	oscbridge-log view session.olog
//
//	# View only discovery-layer events
//	oscbridge-log view -layer discovery session.olog
//
//	# Export to JSONL
//	oscbridge-log export -format jsonl session.olog
//
//	# Keep only outbound control packets
//	oscbridge-log filter -layer control -direction out -o out.olog session.olog
//
//	# Show statistics
//	oscbridge-log stats session.olog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/oscbridge-protocol/oscbridge-go/cmd/oscbridge-log/commands"
)

const usage = `oscbridge-log - OSC bridge protocol log analyzer

Usage:
  oscbridge-log <command> [flags] <file.olog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "oscbridge-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func filterFlags(fs *flag.FlagSet) (layer, direction, category *string) {
	layer = fs.String("layer", "", "Filter by layer (discovery, control, directory, service)")
	direction = fs.String("direction", "", "Filter by direction (in, out)")
	category = fs.String("category", "", "Filter by category (packet, state, error)")
	return
}

func buildFilter(layer, direction, category string) (commands.Filter, error) {
	var filter commands.Filter
	var err error
	if layer != "" {
		if filter.Layer, err = commands.ParseLayerFlag(layer); err != nil {
			return filter, err
		}
	}
	if direction != "" {
		if filter.Direction, err = commands.ParseDirectionFlag(direction); err != nil {
			return filter, err
		}
	}
	if category != "" {
		if filter.Category, err = commands.ParseCategoryFlag(category); err != nil {
			return filter, err
		}
	}
	return filter, nil
}

func requireFile(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	layer, direction, category := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	filter, err := buildFilter(*layer, *direction, *category)
	if err != nil {
		fatal(err)
	}
	if err := commands.RunView(requireFile(fs), filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "jsonl", "Output format: jsonl or csv")
	output := fs.String("o", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		out = f
	}
	if err := commands.RunExport(requireFile(fs), *format, out); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	layer, direction, category := filterFlags(fs)
	output := fs.String("o", "", "Output file (required)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: -o output file required")
		os.Exit(1)
	}

	filter, err := buildFilter(*layer, *direction, *category)
	if err != nil {
		fatal(err)
	}
	if err := commands.RunFilter(requireFile(fs), *output, filter); err != nil {
		fatal(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if err := commands.RunStats(requireFile(fs), os.Stdout); err != nil {
		fatal(err)
	}
}
