// Copyright (c) Microsoft. All rights reserved.

// Command mcpchat is a console chat with an Azure AI Foundry agent that can
// call tools on remote MCP servers.
//
// Conversations are stored locally and can be resumed, listed, shown and
// deleted. Each question runs on a fresh remote agent seeded with the recent
// conversation history.
//
// Usage:
//
//	export PROJECT_ENDPOINT=https://<resource>.services.ai.azure.com/api/projects/<project>
//	export MODEL_DEPLOYMENT_NAME=gpt-4o
//	go run ./cmd/mcpchat
//
// Settings may also come from a .env file or a YAML/JSONC file passed with
// --config. Set DEBUG=1 or pass --debug for debug logging.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
