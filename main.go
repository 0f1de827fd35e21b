// The main package for the docs-mirror executable.
package main

import (
	"os"

	"github.com/JakeFAU/docs-mirror/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
