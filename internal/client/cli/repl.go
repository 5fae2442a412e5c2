package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	List(ctx context.Context, search string) error
	Mine(ctx context.Context) error
	Edit(ctx context.Context) error
	View(ctx context.Context, id string) error
	Endorse(ctx context.Context, skillID string) error
	Unendorse(ctx context.Context, skillID string) error
	Reload(ctx context.Context) error
	Back(ctx context.Context) error
	Stats(ctx context.Context) error
	State(ctx context.Context) error
}

const (
	helpAnonymous = "Available commands: register, login, (l)ist [search], view <id>, endorse <skill>, reload, back, stats, state, exit"
	helpLoggedIn  = "Available commands: (l)ist [search], mine, edit, view <id>, endorse <skill>, unendorse <skill>, reload, back, whoami, stats, state, logout, exit"
)

// runREPL reads commands from reader until EOF, "exit" or "quit".
//
// The first word of a line is the command, the rest is its argument. The
// prompt shows statusFn's output. Command errors are reported by the
// handlers themselves, so they are dropped here.
//
// The same reader is handed to the App for prompts, so nothing here may buffer
// past the end of the current line.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("td> %s > ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		if cmd == "" {
			continue
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpAnonymous)
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "l", "list":
			_ = a.List(ctx, arg)

		case "mine":
			_ = a.Mine(ctx)

		case "edit":
			_ = a.Edit(ctx)

		case "view", "open":
			if arg == "" {
				printlnFn("Usage: view <profile id>")
				continue
			}
			_ = a.View(ctx, arg)

		case "endorse", "unendorse":
			if arg == "" {
				printlnFn("Usage:", cmd, "<skill id>")
				continue
			}
			if cmd == "endorse" {
				_ = a.Endorse(ctx, arg)
			} else {
				_ = a.Unendorse(ctx, arg)
			}

		case "reload":
			_ = a.Reload(ctx)

		case "back":
			_ = a.Back(ctx)

		case "stats":
			_ = a.Stats(ctx)

		case "state":
			_ = a.State(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}
