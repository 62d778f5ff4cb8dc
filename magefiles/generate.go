//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// bin returns the path of the built CLI.
func bin() string {
	return filepath.Join(binDir, binName)
}

// Serve builds the CLI and runs the HTTP API with the scheduler started.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "serve", "--autostart")
}

// Article runs the content pipeline for the topic in $TOPIC.
func Article() error {
	topic := os.Getenv("TOPIC")
	if topic == "" {
		return fmt.Errorf("set TOPIC to the article topic")
	}
	mg.Deps(Build)
	args := []string{"generate", topic}
	if category := os.Getenv("CATEGORY"); category != "" {
		args = append(args, "--category", category)
	}
	return sh.RunV(bin(), args...)
}

// Cycle runs one image cycle over published articles missing assets.
func Cycle() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "orchestrator", "run")
}

// Export writes the image library to assets/library.yaml.
func Export() error {
	mg.Deps(Init, Build)
	return sh.RunV(bin(), "images", "export", "--all", "--output", filepath.Join("assets", "library.yaml"))
}
