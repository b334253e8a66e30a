package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/xplshn/typeof/pkg/cli"
	"github.com/xplshn/typeof/pkg/config"
	"github.com/xplshn/typeof/pkg/repl"
	"github.com/xplshn/typeof/pkg/resolver"
	"github.com/xplshn/typeof/pkg/symtab"
	"github.com/xplshn/typeof/pkg/token"
	"github.com/xplshn/typeof/pkg/util"
)

func main() {
	app := cli.NewApp("typeof")
	app.Synopsis = "[options] <expr> ..."
	app.Description = "Print the static type of C-like expressions against a table of declarations, without evaluating them."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/typeof>"

	var (
		decls       []string
		std         string
		target      string
		exprFile    string
		asJSON      bool
		interactive bool
		trace       bool
		pedantic    bool
		wall        bool
	)

	fs := app.FlagSet
	fs.List(&decls, "decls", "d", []string{}, "Load declarations from a JSON <file>. May be repeated.", "file")
	fs.String(&std, "std", "", "EDL", "Specify the dialect (C, EDL)", "std")
	fs.String(&target, "target", "t", "", "Set the QBE target used to size builtin types.", "target")
	fs.String(&exprFile, "file", "f", "", "Read expressions from <file>, one per line. '#' starts a comment.", "file")
	fs.Bool(&asJSON, "json", "j", false, "Print results as JSON.")
	fs.Bool(&interactive, "interactive", "i", false, "Start an interactive session.")
	fs.Bool(&trace, "trace", "", false, "Log every reduction to stderr.")
	fs.Bool(&pedantic, "pedantic", "", false, "Issue all warnings demanded by the current dialect.")
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings except pedantic ones.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		if pedantic {
			cfg.SetWarning(config.WarnPedantic, true)
		}
		if err := cfg.ApplyStd(std); err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}
		if wall {
			cfg.ProcessDirectiveFlags("-Wall")
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target)

		table := symtab.NewTable(cfg.WordSize)
		for _, path := range decls {
			if err := table.LoadFile(path); err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
		}

		logger := zerolog.Nop()
		if trace {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !isatty.IsTerminal(os.Stderr.Fd())}).
				Level(zerolog.DebugLevel).With().Timestamp().Logger()
		}

		in, err := collectInputs(args, exprFile)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}

		res := resolver.New(cfg, table,
			resolver.WithLogger(logger),
			resolver.WithWarnings(func(w config.Warning, tok token.Token, msg string) {
				util.Warn(cfg, w, in.locate(tok), "%s", msg)
			}),
		)

		if interactive {
			return repl.Run(res)
		}
		if len(in.exprs) == 0 {
			util.Error(token.Token{FileIndex: -1}, "no expressions given")
		}

		nodes, err := res.ResolveAll(in.exprs)
		if asJSON {
			if werr := writeJSON(in, nodes, err, table); werr != nil {
				return werr
			}
		} else {
			writeText(in, nodes, err)
		}
		return err
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// inputs holds the expressions to resolve. Expression i is source record i,
// so resolution tokens map back to the argument or file line they came from.
type inputs struct {
	exprs []string
	lines []int // line of each expression in its source, 1-based
}

func collectInputs(args []string, exprFile string) (*inputs, error) {
	in := &inputs{}
	var records []util.SourceFileRecord
	for _, arg := range args {
		in.exprs = append(in.exprs, arg)
		in.lines = append(in.lines, 1)
		records = append(records, util.SourceFileRecord{Name: "<arg>", Content: []rune(arg)})
	}

	if exprFile != "" {
		data, err := os.ReadFile(exprFile)
		if err != nil {
			return nil, fmt.Errorf("could not read file '%s': %w", exprFile, err)
		}
		content := []rune(string(data))
		sc := bufio.NewScanner(strings.NewReader(string(data)))
		for lineNo := 1; sc.Scan(); lineNo++ {
			line := sc.Text()
			if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			in.exprs = append(in.exprs, line)
			in.lines = append(in.lines, lineNo)
			records = append(records, util.SourceFileRecord{Name: exprFile, Content: content})
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("could not read file '%s': %w", exprFile, err)
		}
	}

	util.SetSourceFiles(records)
	return in, nil
}

// locate moves a token of expression i onto its line in the source record.
func (in *inputs) locate(tok token.Token) token.Token {
	if tok.FileIndex >= 0 && tok.FileIndex < len(in.lines) {
		tok.Line += in.lines[tok.FileIndex] - 1
	}
	return tok
}

func (in *inputs) report(err error) {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		util.ReportErr(err)
		return
	}
	for _, e := range merr.Errors {
		var rerr *resolver.Error
		if errors.As(e, &rerr) {
			util.Report(in.locate(rerr.Tok), "%s [%s]", rerr.Msg, rerr.Kind.Name)
			continue
		}
		util.ReportErr(e)
	}
}

func writeText(in *inputs, nodes []resolver.Node, err error) {
	if err != nil {
		in.report(err)
	}
	for i, node := range nodes {
		if node.Type == nil {
			continue
		}
		if len(nodes) == 1 {
			fmt.Println(resolver.Describe(node))
			continue
		}
		fmt.Printf("%s => %s\n", strings.TrimSpace(in.exprs[i]), resolver.Describe(node))
	}
}

type jsonError struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

type jsonResult struct {
	Expr  string     `json:"expr"`
	Type  string     `json:"type,omitempty"`
	Base  string     `json:"base,omitempty"`
	Refs  string     `json:"refs,omitempty"`
	Pad   int        `json:"pad,omitempty"`
	Size  *int64     `json:"size,omitempty"`
	Error *jsonError `json:"error,omitempty"`
}

func writeJSON(in *inputs, nodes []resolver.Node, err error, table *symtab.Table) error {
	results := make([]jsonResult, len(nodes))
	for i, node := range nodes {
		results[i].Expr = in.exprs[i]
		if node.Type == nil {
			continue
		}
		size := table.SizeOf(node.Type, node.ActiveRefs())
		if node.Pad > 0 {
			size = int64(table.WordSize())
		}
		results[i].Type = resolver.Describe(node)
		results[i].Base = resolver.Name(node)
		results[i].Refs = symtab.RefsString(node.ActiveRefs())
		results[i].Pad = node.Pad
		results[i].Size = &size
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			var rerr *resolver.Error
			if !errors.As(e, &rerr) || rerr.Tok.FileIndex < 0 || rerr.Tok.FileIndex >= len(results) {
				continue
			}
			tok := in.locate(rerr.Tok)
			results[rerr.Tok.FileIndex].Error = &jsonError{
				Code: rerr.Kind.Code, Name: rerr.Kind.Name, Message: rerr.Msg,
				Line: tok.Line, Column: tok.Column,
			}
		}
	}

	var (
		out  []byte
		jerr error
	)
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		out, jerr = prettyjson.Marshal(results)
	} else {
		out, jerr = json.MarshalIndent(results, "", "  ")
	}
	if jerr != nil {
		return fmt.Errorf("encoding results: %w", jerr)
	}
	fmt.Println(string(out))
	return nil
}
