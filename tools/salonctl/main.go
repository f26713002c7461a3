package main

import (
	"fmt"
	"os"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/runtime"
)

func main() {
	ctx, stop := runtime.SignalContext()
	err := newRootCmd(time.Now).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
