// Package main implements the entry point of the task backend: the REST API
// used by the web client and the chat bot, the due-notification executor and
// the operational commands around them.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
