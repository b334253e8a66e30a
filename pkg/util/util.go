package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/xplshn/typeof/pkg/config"
	"github.com/xplshn/typeof/pkg/resolver"
	"github.com/xplshn/typeof/pkg/token"
)

// SourceFileRecord tracks the name and content of one diagnosed source, an
// expression file or a single command line argument.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var (
	sourceFiles []SourceFileRecord

	// Output receives diagnostics; tests swap it for a buffer.
	Output io.Writer = color.Error

	errorLabel   = color.New(color.FgRed, color.Bold)
	warningLabel = color.New(color.FgYellow, color.Bold)
	caret        = color.New(color.FgGreen)
)

func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

// AddSourceFile registers one more record and returns its file index.
func AddSourceFile(name string, content []rune) int {
	sourceFiles = append(sourceFiles, SourceFileRecord{Name: name, Content: content})
	return len(sourceFiles) - 1
}

func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "unknown", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line of tok and a caret under it.
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}
	content := sourceFiles[tok.FileIndex].Content

	lineStart, lineNum := 0, tok.Line
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	mark := "^"
	if tok.Len > 1 {
		mark += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", max(tok.Column-1, 0)), caret.Sprint(mark))
}

// Report prints an error diagnostic at tok.
func Report(tok token.Token, format string, args ...interface{}) {
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(Output, "%s:%d:%d: %s %s\n", filename, line, col, errorLabel.Sprint("error:"), fmt.Sprintf(format, args...))
	printErrorLine(Output, tok)
}

// ReportErr prints err, positioned at its token when it is a resolution error.
func ReportErr(err error) {
	var rerr *resolver.Error
	if errors.As(err, &rerr) {
		Report(rerr.Tok, "%s [%s]", rerr.Msg, rerr.Kind.Name)
		return
	}
	fmt.Fprintf(Output, "%s %v\n", errorLabel.Sprint("error:"), err)
}

// Error prints a diagnostic and exits the program.
func Error(tok token.Token, format string, args ...interface{}) {
	Report(tok, format, args...)
	os.Exit(1)
}

// Warn prints a warning if wt is enabled in cfg.
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(Output, "%s:%d:%d: %s %s [-W%s]\n", filename, line, col,
		warningLabel.Sprint("warning:"), fmt.Sprintf(format, args...), cfg.Warnings[wt].Name)
	printErrorLine(Output, tok)
}
