package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess            = 0
	ExitGeneralError       = 1
	ExitInvalidArgs        = 2
	ExitMissingPDF         = 3
	ExitUnexpectedResponse = 4
	ExitStorageError       = 5
	ExitSourceChanged      = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "fetch":
		return runFetch(cmdArgs)
	case "probe":
		return runProbe(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: pdffetch <command> [options]

Commands:
  fetch   Fetch a PDF document over HTTP into object storage
  probe   Inspect a document URL and report range support and filename

Run 'pdffetch <command> -h' for command-specific help.`)
}
