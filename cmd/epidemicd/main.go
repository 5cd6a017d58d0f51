// Command epidemicd runs the epidemic membership daemon.
package main

import "github.com/epidemic-mesh/epidemic/internal/cli"

func main() {
	cli.Execute()
}
