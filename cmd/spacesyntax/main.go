// Command spacesyntax computes space syntax indices for street networks.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
