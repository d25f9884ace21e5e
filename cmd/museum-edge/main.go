// Command museum-edge runs the offline-first edge in front of the museum
// site origin.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
