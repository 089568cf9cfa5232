/*
Copyright 2011-2026 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command mba-toolkit is both sides of the agent transport in one
// binary: "-agent" runs the in-VM listener, "-host <addr> <command>"
// dispatches one host-side subcommand against a running agent, and any
// other first argument is rejected.
// Argument handling follows the same manual map-based parser the
// teacher's CLI used, scaled down to this tool's much smaller option
// surface.
package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/glacierw/mba-toolkit/guestagent"
	"github.com/glacierw/mba-toolkit/hostagent"
)

const (
	_APP_HEADER    = "mba-toolkit (c) Frederic Langlet"
	_ARG_LOGPATH   = "--logpath="
	_ARG_PORT      = "--port="
	_ARG_ADDR      = "--addr="
	defaultLogPath = "agent.log"
	defaultAddr    = "127.0.0.1:0"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	var code int

	switch os.Args[1] {
	case "-agent":
		code = runAgent(os.Args[2:])
	case "-host":
		code = runHost(os.Args[2:])
	case "-h", "--help":
		printHelp()
		code = 0
	default:
		fmt.Printf("Unknown mode %q: try -agent or -host\n", os.Args[1])
		code = 1
	}

	os.Exit(code)
}

func runAgent(args []string) int {
	logPath := defaultLogPath
	addr := defaultAddr

	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, _ARG_LOGPATH):
			logPath = strings.TrimPrefix(arg, _ARG_LOGPATH)
		case strings.HasPrefix(arg, _ARG_PORT):
			addr = "127.0.0.1:" + strings.TrimPrefix(arg, _ARG_PORT)
		}
	}

	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		fmt.Printf("Failed to bind agent socket: %v\n", err)
		return 1
	}

	fmt.Println(_APP_HEADER)
	fmt.Printf("Listening on %s, logging to %s\n", conn.LocalAddr(), logPath)

	session := guestagent.NewSession(conn, logPath)

	if err := session.Open(); err != nil {
		fmt.Printf("Failed to open session: %v\n", err)
		return 1
	}

	session.AddListener(NewConsoleListener())

	srv := guestagent.NewServer(session)

	if err := srv.Run(); err != nil {
		fmt.Printf("Agent loop exited: %v\n", err)
		return 1
	}

	return 0
}

func runHost(args []string) int {
	if len(args) < 2 {
		fmt.Println("Usage: mba-toolkit -host <addr> <command> [args...]")
		return 1
	}

	addr := args[0]
	command := args[1]
	rest := args[2:]

	client, err := hostagent.Dial(addr)
	if err != nil {
		fmt.Printf("Failed to dial agent at %s: %v\n", addr, err)
		return 1
	}
	defer client.Close()

	switch command {
	case "impo":
		if len(rest) != 2 {
			fmt.Println("Usage: impo <localPath> <destPath>")
			return 1
		}

		if err := client.Import(rest[0], rest[1]); err != nil {
			fmt.Printf("Import failed: %v\n", err)
			return 1
		}

	case "expo":
		if len(rest) != 2 {
			fmt.Println("Usage: expo <srcPath> <localPath>")
			return 1
		}

		if err := client.Export(rest[0], rest[1]); err != nil {
			fmt.Printf("Export failed: %v\n", err)
			return 1
		}

	case "logf":
		if len(rest) != 1 {
			fmt.Println("Usage: logf <localPath>")
			return 1
		}

		if err := client.ExportLog(rest[0]); err != nil {
			fmt.Printf("Log export failed: %v\n", err)
			return 1
		}

	case "exec":
		if len(rest) != 1 {
			fmt.Println("Usage: exec <commandLine>")
			return 1
		}

		out, err := client.Exec(rest[0], os.Stdin)
		if err != nil {
			fmt.Printf("Exec failed: %v\n", err)
			return 1
		}

		os.Stdout.Write(out)

	case "invo":
		if len(rest) != 1 {
			fmt.Println("Usage: invo <commandLine>")
			return 1
		}

		if err := client.Invoke(rest[0]); err != nil {
			fmt.Printf("Invoke failed: %v\n", err)
			return 1
		}

	case "sync":
		if err := client.Sync(); err != nil {
			fmt.Printf("Sync failed: %v\n", err)
			return 1
		}

	default:
		fmt.Printf("Unknown host command %q\n", command)
		return 1
	}

	return 0
}

func printHelp() {
	fmt.Println(_APP_HEADER)
	fmt.Println()
	fmt.Println("  -agent [--logpath=PATH] [--port=N]")
	fmt.Println("        Run the in-VM agent listener.")
	fmt.Println()
	fmt.Println("  -host <addr> <impo|expo|logf|exec|invo|sync> [args...]")
	fmt.Println("        Drive a running agent from the host side.")
}
