package main

import "errors"

var (
	// ErrUsage is an error that occurs when a command is called with the
	// wrong arguments.
	ErrUsage = errors.New("invalid usage")

	// ErrUnknownCommand is an error that occurs for a command that does not
	// exist.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInconsistent is an error that occurs when a check of the file system
	// found an inconsistency.
	ErrInconsistent = errors.New("file system inconsistent")
)
