// Command ggp-deploy uploads a sample binary and its assets to a reserved
// instance and runs it there through the ggp tool.
//
//	$ ggp-deploy bazel-bin/projects/20_camera_motion/20_camera_motion
//
// The process exits with the status of the last ggp invocation it made.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
