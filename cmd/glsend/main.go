// glsend sends device messages and state queries into a Gray Logic
// dispatch cluster from the command line.
//
// It joins the cluster backplane named in the node configuration, so it
// needs no gateway or HTTP endpoint to reach a device.
package main

import (
	"fmt"
	"os"
)

// Version information - set at build time via ldflags
var version = "dev"

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
