// Package main provides the entry point for the neardup CLI tool.
package main

import (
	"errors"
	"os"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/neardup/cmd/neardup/commands"
	"github.com/Sumatoshi-tech/neardup/pkg/corpus"
	"github.com/Sumatoshi-tech/neardup/pkg/version"
)

// Exit codes.
const (
	exitError    = 1
	exitDocument = 2
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err == nil {
		return
	}

	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)

	var docErr *corpus.DocumentError
	if errors.As(err, &docErr) {
		os.Exit(exitDocument)
	}

	os.Exit(exitError)
}
