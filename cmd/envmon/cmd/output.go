package cmd

import (
	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen).SprintFunc()
	warnColor    = color.New(color.FgYellow).SprintFunc()
	currentColor = color.New(color.FgGreen, color.Bold).SprintFunc()
)

func success() string {
	return successColor("✅")
}

func warning() string {
	return warnColor("⚠️ ")
}
