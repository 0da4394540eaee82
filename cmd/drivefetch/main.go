package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSetupError      = 3
	ExitDownloadsFailed = 4
	ExitStorageError    = 5
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
	case "scan":
		return runScan(cmdArgs)
	case "download":
		return runDownload(cmdArgs)
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
	fmt.Fprintln(os.Stderr, `Usage: drivefetch <command> [options]

Commands:
  scan      List every file below a Drive folder and summarize it by type
  download  Scan, choose file types, and download them into a local or bucket mirror

Run 'drivefetch <command> -h' for command-specific help.`)
}
