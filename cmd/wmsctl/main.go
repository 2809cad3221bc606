// Package main provides wmsctl, the administration CLI for the ocean WMS server.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
