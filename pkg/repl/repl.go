// Package repl reads expressions interactively and prints their types.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/xplshn/typeof/pkg/ops"
	"github.com/xplshn/typeof/pkg/resolver"
	"github.com/xplshn/typeof/pkg/util"
)

const (
	historyFile = ".typeof_history"
	prompt      = "typeof> "
	banner      = "typeof: enter an expression to see its type, :help for commands"
)

var typeColor = color.New(color.FgCyan)

// Session evaluates REPL lines against one resolver.
type Session struct {
	res *resolver.Resolver
	out io.Writer
}

func NewSession(res *resolver.Resolver, out io.Writer) *Session {
	return &Session{res: res, out: out}
}

// Handle evaluates one line and reports whether the session should end.
// Resolution failures are reported through util.
func (s *Session) Handle(line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, ":"):
		return s.command(strings.ToLower(line))
	}

	idx := util.AddSourceFile("<repl>", []rune(line))
	node, err := s.res.ResolveAt(line, idx)
	if err != nil {
		util.ReportErr(err)
		return false
	}
	fmt.Fprintln(s.out, typeColor.Sprint(resolver.Describe(node)))
	return false
}

func (s *Session) command(cmd string) bool {
	switch cmd {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprintln(s.out, ":help   show this message")
		fmt.Fprintln(s.out, ":ops    list the operator table")
		fmt.Fprintln(s.out, ":quit   leave")
	case ":ops":
		for _, info := range s.res.Operators().All() {
			fmt.Fprintf(s.out, "%-8s %3d  %s\n", info.Lexeme, info.Prec, info.Flags)
		}
	default:
		fmt.Fprintf(s.out, "unknown command %s. Type :help for a list.\n", cmd)
	}
	return false
}

// Run starts an interactive loop on the terminal, or reads stdin line by line
// when it is not one.
func Run(res *resolver.Resolver) error {
	s := NewSession(res, color.Output)
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return s.scan(os.Stdin)
	}

	fmt.Fprintln(s.out, banner)
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(completer(res.Operators()))

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	done := make(chan struct{})
	defer func() {
		signal.Stop(sigc)
		close(done)
	}()
	go watchSignals(sigc, done, func() {
		ln.Close()
		os.Exit(130)
	})

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if s.Handle(line) {
			return nil
		}
	}
}

// watchSignals calls onSignal on the first signal, or returns once done is
// closed.
func watchSignals(sigc <-chan os.Signal, done <-chan struct{}, onSignal func()) {
	select {
	case <-sigc:
		onSignal()
	case <-done:
	}
}

func (s *Session) scan(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s.Handle(sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}

// completer offers word operators and REPL commands.
func completer(table *ops.Table) liner.Completer {
	var words []string
	for _, info := range table.All() {
		if ops.IsWord(info.Lexeme) {
			words = append(words, info.Lexeme)
		}
	}
	words = append(words, ":help", ":ops", ":quit")
	return func(line string) []string {
		start := strings.LastIndexAny(line, " \t()[]") + 1
		prefix := line[start:]
		if prefix == "" {
			return nil
		}
		var out []string
		for _, w := range words {
			if strings.HasPrefix(w, prefix) {
				out = append(out, line[:start]+w)
			}
		}
		return out
	}
}
