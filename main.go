package main

import (
	// Embedded zone database for business time zones on minimal images
	_ "time/tzdata"

	"github.com/sautiksau/bookingsync/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	// Set the version from build-time variable
	cmd.SetVersion(version)

	// Execute the root command
	cmd.Execute()
}
