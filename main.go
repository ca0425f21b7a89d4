// Laraflow runs the data maintenance jobs of a Laraflow workspace.
package main

import (
	"os"

	"github.com/laraflow/laraflow/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
