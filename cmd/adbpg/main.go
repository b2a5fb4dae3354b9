// Command adbpg serves AnalyticDB for PostgreSQL retrieval, ingestion and
// model capabilities to Dify: an external knowledge HTTP endpoint, an MCP
// tool server, and CLI access to the same tools.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/adbpg-go/cmd/adbpg/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
