// Package cmd implements the command-line interface for bookingsync.
//
// This package provides the following commands:
//   - serve: Start the HTTP API, the metrics server and the periodic calendar import
//   - import: Run one calendar import and print its statistics
//   - availability: Print free slots for a service duration
//   - status: Print the calendar connection status
//   - hash-password: Hash an admin password for the config file
//   - generate-docs: Generate markdown documentation for the HTTP routes
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
