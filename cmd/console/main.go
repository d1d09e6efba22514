package main

import (
	"context"
	"os"

	"projectdesk/console/cmd/console/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
