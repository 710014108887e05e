// Command asnative-sandbox serves an in-memory store over the REST gateway
// protocol so clients can run in rest mode without a cluster.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
