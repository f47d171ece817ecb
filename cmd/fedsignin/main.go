// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Command fedsignin signs a user in through a native consent provider (an
// OIDC provider driven through the system browser) and exchanges the
// resulting platform token for a session credential with the identity API.
package main

import (
	"context"
	"os"
	"os/signal"
)

// version can be set during build with -ldflags
var version = "dev"

func main() {
	// handle ctrl-c while waiting for the sign-in
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], openURL)
	stop()
	os.Exit(code)
}
