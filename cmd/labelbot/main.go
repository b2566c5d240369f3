package main

import (
	"labelbot/cmd/labelbot/commands"
	"labelbot/pkg/serviceutil"
)

func main() {
	ctx, stop := serviceutil.SignalContext()
	defer stop()
	commands.ExecuteContext(ctx)
}
