// Command dclib converts CSV files to RDF using JSON mapping templates.
package main

import (
	"fmt"
	"os"

	"github.com/epimorphics/dclib-sub000/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
