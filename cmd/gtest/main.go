// gtest runs typeof over expression files and compares its output against
// recorded golden results.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is the recorded result of one expression file.
type Golden struct {
	SourceHash string    `json:"source_hash"`
	Args       []string  `json:"args"`
	Result     Execution `json:"result"`
}

type FileTestResult struct {
	File    string     `json:"file"`
	Status  string     `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string     `json:"message,omitempty"`
	Diff    string     `json:"diff,omitempty"`
	Golden  *Golden    `json:"golden,omitempty"`
	Target  *Execution `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	target         = flag.String("target", "./typeof", "Path to the typeof binary to test.")
	targetArgs     = flag.String("target-args", "", "Extra arguments for typeof (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given expression file.")
	testFiles      = flag.String("test-files", "tests/*.expr", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each typeof execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Compare against golden files even when their source hash is stale.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *generateGolden != "" {
		if err := writeGolden(*generateGolden); err != nil {
			log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
		}
		return
	}
	if !runSuite() {
		os.Exit(1)
	}
}

func goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

// declsPath returns the declarations file that accompanies an expression
// file ("x.expr" uses "x.decls.json"), or "" when there is none.
func declsPath(sourceFile string) string {
	path := strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile)) + ".decls.json"
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// hashInputs covers the expression file and its declarations.
func hashInputs(sourceFile string) (string, error) {
	sum, err := hashFile(sourceFile)
	if err != nil {
		return "", err
	}
	if decls := declsPath(sourceFile); decls != "" {
		declSum, err := hashFile(decls)
		if err != nil {
			return "", err
		}
		sum += "-" + declSum
	}
	return sum, nil
}

func typeofArgs(sourceFile string) []string {
	args := strings.Fields(*targetArgs)
	if decls := declsPath(sourceFile); decls != "" {
		args = append(args, "-d", decls)
	}
	return append(args, "-f", sourceFile)
}

func writeGolden(sourceFile string) error {
	log.Printf("Generating golden file for %s...\n", sourceFile)
	sum, err := hashInputs(sourceFile)
	if err != nil {
		return fmt.Errorf("could not hash %s: %w", sourceFile, err)
	}
	args := typeofArgs(sourceFile)
	golden := Golden{SourceHash: sum, Args: args, Result: execute(*target, args...)}
	if golden.Result.TimedOut {
		return fmt.Errorf("typeof timed out on %s", sourceFile)
	}

	data, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data: %w", err)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", *jsonDir, err)
		}
	}
	path := goldenPath(sourceFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", path, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, path)
	return nil
}

func runSuite() bool {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return true
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	results := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				results <- testFile(file)
			}
		}()
	}

	for _, file := range files {
		if skipList[file] {
			results <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(results)

	var all []*FileTestResult
	for r := range results {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })

	printSummary(all)
	return !hasFailures(writeJSONReport(all))
}

func testFile(file string) *FileTestResult {
	data, err := os.ReadFile(goldenPath(file))
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "No golden file; generate one with --generate-golden"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file: %v", err)}
	}
	var golden Golden
	if err := json.Unmarshal(data, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file: %v", err)}
	}

	sum, err := hashInputs(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to hash inputs: %v", err)}
	}
	if sum != golden.SourceHash && !*useCache {
		return &FileTestResult{File: file, Status: "ERROR", Message: "Golden file is stale; regenerate it or pass --cached", Golden: &golden}
	}

	got := execute(*target, typeofArgs(file)...)
	return compare(file, &golden, &got)
}

func compare(file string, golden *Golden, got *Execution) *FileTestResult {
	res := &FileTestResult{File: file, Golden: golden, Target: got}
	if got.TimedOut {
		res.Status, res.Message = "FAIL", "typeof timed out"
		return res
	}

	var diffs strings.Builder
	want := golden.Result
	if want.ExitCode != got.ExitCode {
		fmt.Fprintf(&diffs, "Exit code mismatch:\n  - Golden: %d\n  - Target: %d\n", want.ExitCode, got.ExitCode)
	}
	if d := cmp.Diff(want.Stdout, got.Stdout); d != "" {
		fmt.Fprintf(&diffs, "STDOUT mismatch:\n%s", d)
	}
	if d := cmp.Diff(want.Stderr, got.Stderr); d != "" {
		fmt.Fprintf(&diffs, "STDERR mismatch:\n%s", d)
	}

	if diffs.Len() > 0 {
		res.Status, res.Message, res.Diff = "FAIL", "Output or exit code mismatch", diffs.String()
		return res
	}
	res.Status, res.Message = "PASS", "Output matches golden file"
	return res
}

// execute runs typeof with a timeout. NO_COLOR keeps diagnostics stable.
func execute(command string, args ...string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()

	res := Execution{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut, res.ExitCode = true, -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -2
		res.Stderr += "\nExecution error: " + err.Error()
	}
	return res
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration
	for _, r := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, r.File, cNone)
		switch r.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, r.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, r.Message)
			fmt.Println(formatDiff(r.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, r.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, r.Message)
		}
		if r.Target != nil {
			total += r.Target.Duration
			if *verbose {
				fmt.Printf("  %s\n", r.Target.Duration)
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if *verbose {
		fmt.Printf("Total time in %s: %s\n", filepath.Base(*target), total)
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-"):
			b.WriteString(cRed)
		case strings.HasPrefix(trimmed, "+"):
			b.WriteString(cGreen)
		}
		b.WriteString("    " + line + cNone + "\n")
	}
	return b.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	byFile := make(TestSuiteResults, len(results))
	for _, r := range results {
		byFile[r.File] = r
	}
	data, err := json.MarshalIndent(byFile, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return byFile
	}
	out := *outputJSON
	if *jsonDir != "" {
		out = filepath.Join(*jsonDir, *outputJSON)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, out, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", out)
	}
	return byFile
}

func hasFailures(results TestSuiteResults) bool {
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil || seen[abs] {
				continue
			}
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				files = append(files, abs)
				seen[abs] = true
			}
		}
	}
	return files, nil
}
