// Package ui renders installer progress to the terminal.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Console writes sectioned status output and reads interactive answers.
// A nil *Console is valid and silently discards all output, which keeps
// step code free of nil checks.
type Console struct {
	out         io.Writer
	in          *bufio.Reader
	interactive bool
}

// NewConsole creates a console bound to stdout/stdin
func NewConsole() *Console {
	return &Console{
		out:         os.Stdout,
		in:          bufio.NewReader(os.Stdin),
		interactive: isatty.IsTerminal(os.Stdin.Fd()),
	}
}

// NewTestConsole creates a console writing to out and reading from in;
// a nil in makes the console non-interactive
func NewTestConsole(out io.Writer, in io.Reader) *Console {
	c := &Console{out: out}
	if in != nil {
		c.in = bufio.NewReader(in)
		c.interactive = true
	}
	return c
}

// Interactive reports whether stdin is attached to a terminal
func (c *Console) Interactive() bool {
	return c != nil && c.interactive
}

// Section prints a prominent section header
func (c *Console) Section(title string) {
	if c == nil {
		return
	}
	fmt.Fprintln(c.out)
	pterm.DefaultSection.WithWriter(c.out).Println(title)
}

// Status prints an in-progress line
func (c *Console) Status(msg string) {
	if c == nil {
		return
	}
	pterm.Info.WithWriter(c.out).Println(msg)
}

// Success prints a completed line
func (c *Console) Success(msg string) {
	if c == nil {
		return
	}
	pterm.Success.WithWriter(c.out).Println(msg)
}

// Warning prints a soft-failure line
func (c *Console) Warning(msg string) {
	if c == nil {
		return
	}
	pterm.Warning.WithWriter(c.out).Println(msg)
}

// Error prints an error line
func (c *Console) Error(msg string) {
	if c == nil {
		return
	}
	pterm.Error.WithWriter(c.out).Println(msg)
}

// Print writes a plain line
func (c *Console) Print(msg string) {
	if c == nil {
		return
	}
	fmt.Fprintln(c.out, msg)
}

// Line echoes a subprocess output line, indented under the current status
func (c *Console) Line(line string) {
	if c == nil {
		return
	}
	fmt.Fprintf(c.out, "  %s\n", line)
}

// Input prompts for a value and returns the trimmed answer, or def when
// the answer is empty or the console is not interactive.
func (c *Console) Input(prompt, def string) string {
	if c == nil || c.in == nil {
		return def
	}
	if def != "" {
		fmt.Fprintf(c.out, "%s (%s): ", prompt, def)
	} else {
		fmt.Fprintf(c.out, "%s: ", prompt)
	}
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return def
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return def
	}
	return answer
}

// Confirm prompts for a yes/no answer; def is returned on empty input
func (c *Console) Confirm(prompt string, def bool) bool {
	suffix := "(y/N)"
	defAnswer := "n"
	if def {
		suffix = "(Y/n)"
		defAnswer = "y"
	}
	answer := strings.ToLower(c.Input(fmt.Sprintf("%s %s", prompt, suffix), defAnswer))
	return answer == "y" || answer == "yes"
}
