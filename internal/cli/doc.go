// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatstream command line.
//
// Commands share one app value holding the loaded configuration, the
// logger and the standard streams. Every command returns its error;
// Execute prints it (unless the command already printed it as JSON) and
// maps it to an exit code.
//
// # Key Types
//
//   - UsageError: invalid command input, exit code 2
//   - JSONResponse: the --json envelope {success, status, data, error}
//   - VersionInfo: build information printed by the version command
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
//
// # Commands Overview
//
//	ask [question]            one chat exchange, answer streamed to stdout
//	agent [question]          one agent exchange, reasoning on stderr
//	chat                      interactive REPL, or one message per stdin line
//	rooms list|show|create|rename|delete
//	history [--room|--search|--show|--delete]
//	config show|path|init|get|set
//	version
//
// # Output
//
// Answers are revealed with the typing animation only when stdout is a
// terminal. With --json every command prints exactly one JSON document.
package cli
