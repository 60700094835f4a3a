package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Profile(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	OTP(ctx context.Context) error
	List(ctx context.Context) error
	Add(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Edit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) error
}

const (
	helpGuest  = "Available commands: register, login, exit"
	helpMember = "Available commands: (l)ist, add, show <id>, edit <id>, delete <id>, otp, export, profile, passwd, logout, exit"
)

// runREPL reads commands from reader until EOF, "exit" or "quit". Command
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "passm %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(out, "Bye!")
			return
		}

		if err := dispatch(ctx, a, cmd, args, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			fmt.Fprintln(out, helpMember)
		} else {
			fmt.Fprintln(out, helpGuest)
		}
		return nil
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	}

	if !a.isLoggedIn() {
		fmt.Fprintln(out, "Please log in first")
		return nil
	}

	withID := func(fn func(context.Context, string) error) error {
		if len(args) == 0 {
			fmt.Fprintf(out, "Usage: %s <id>\n", cmd)
			return nil
		}
		return fn(ctx, args[0])
	}

	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "profile":
		return a.Profile(ctx)
	case "passwd":
		return a.ChangePassword(ctx)
	case "otp":
		return a.OTP(ctx)
	case "l", "list":
		return a.List(ctx)
	case "add":
		return a.Add(ctx)
	case "show":
		return withID(a.Show)
	case "edit":
		return withID(a.Edit)
	case "delete":
		return withID(a.Delete)
	case "export":
		return a.Export(ctx)
	default:
		fmt.Fprintln(out, "Unknown command:", cmd)
		return nil
	}
}
