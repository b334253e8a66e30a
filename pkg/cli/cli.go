// Package cli is a small flag parser with GNU-style long options, single
// dash shorthands and grouped -W/-F switches, plus a help page renderer.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

const indentUnit = 4

func indent(level int) string { return strings.Repeat(" ", indentUnit*level) }

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

// Set accepts an empty string as "true" so a bare switch enables it.
func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

func (f *Flag) isBool() bool {
	_, ok := f.Value.(*boolValue)
	return ok
}

type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

// FlagGroupEntry is one -<Prefix><Name> / -<Prefix>no-<Name> switch pair.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	groups     []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

// Args returns the positional arguments left after Parse.
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

// List defines a repeatable flag; every occurrence appends to *p.
func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, strings.Join(value, ","), expectedType)
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand == "" {
		return
	}
	if _, ok := f.shorthands[shorthand]; ok {
		panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
	}
	f.shorthands[shorthand] = flag
}

// AddFlagGroup defines the switches of every entry and lists them under
// their own heading in the help page.
func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for _, e := range entries {
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.groups = append(f.groups, FlagGroup{
		Name: name, Description: description, Flags: entries,
		GroupType: groupType, AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
		case strings.HasPrefix(arg, "--"):
			if err := f.parseNamed(arg[2:], "--", arguments, &i); err != nil {
				return err
			}
		default:
			name, _, _ := strings.Cut(arg[1:], "=")
			if _, ok := f.flags[name]; ok {
				if err := f.parseNamed(arg[1:], "-", arguments, &i); err != nil {
					return err
				}
				continue
			}
			if err := f.parseShort(arg, arguments, &i); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseNamed handles "name", "name=value" and "name value".
func (f *FlagSet) parseNamed(arg, dashes string, arguments []string, i *int) error {
	name, value, hasValue := strings.Cut(arg, "=")
	if name == "" {
		return fmt.Errorf("empty flag name")
	}
	flag, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: %s%s", dashes, name)
	}
	if hasValue {
		return flag.Value.Set(value)
	}
	if flag.isBool() {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: %s%s", dashes, name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

// parseShort handles "-x", "-xvalue" and "-x value".
func (f *FlagSet) parseShort(arg string, arguments []string, i *int) error {
	shorthand := arg[1:2]
	flag, ok := f.shorthands[shorthand]
	if !ok {
		return fmt.Errorf("unknown flag: %s", arg)
	}
	if flag.isBool() {
		if len(arg) > 2 {
			return fmt.Errorf("unknown flag: %s", arg)
		}
		return flag.Value.Set("")
	}
	if value := arg[2:]; value != "" {
		return flag.Value.Set(strings.TrimPrefix(value, "="))
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: -%s", shorthand)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error

	Stdout io.Writer
	Stderr io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		a.WriteUsage(a.Stderr)
		return err
	}
	if help {
		a.WriteHelp(a.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) WriteUsage(w io.Writer) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)

	flags := a.optionFlags()
	if len(flags) > 0 {
		width, usageWidth := a.columnWidths(flags)
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range flags {
			a.writeFlag(&sb, flag, width, usageWidth)
		}
	}
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	io.WriteString(w, sb.String())
}

func (a *App) WriteHelp(w io.Writer) {
	var sb strings.Builder
	flags := a.optionFlags()
	width, usageWidth := a.columnWidths(flags)

	if len(a.Authors) > 0 {
		fmt.Fprintf(&sb, "\n%sAuthors: %s\n", indent(1), strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indent(1), indent(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, terminalWidth()-len(indent(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}
	if len(flags) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range flags {
			a.writeFlag(&sb, flag, width, usageWidth)
		}
	}

	groups := append([]FlagGroup(nil), a.FlagSet.groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		a.writeGroup(&sb, group, width, usageWidth)
	}
	io.WriteString(w, sb.String())
}

// optionFlags lists the flags that are not part of a group, sorted by name.
func (a *App) optionFlags() []*Flag {
	var flags []*Flag
	for _, flag := range a.FlagSet.flags {
		if !a.isGroupFlag(flag.Name) {
			flags = append(flags, flag)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

func (a *App) isGroupFlag(name string) bool {
	for _, group := range a.FlagSet.groups {
		for _, e := range group.Flags {
			if name == e.Prefix+e.Name || name == e.Prefix+"no-"+e.Name {
				return true
			}
		}
	}
	return false
}

func (a *App) columnWidths(flags []*Flag) (width, usageWidth int) {
	grow := func(w *int, s string) {
		if len(s) > *w {
			*w = len(s)
		}
	}
	for _, flag := range flags {
		grow(&width, formatFlag(flag))
		grow(&usageWidth, flag.Usage)
	}
	for _, group := range a.FlagSet.groups {
		if len(group.Flags) == 0 {
			continue
		}
		grow(&width, fmt.Sprintf("-%sno-<%s>", group.Flags[0].Prefix, group.GroupType))
		for _, e := range group.Flags {
			grow(&width, e.Name)
			grow(&usageWidth, e.Usage)
		}
	}
	return width, usageWidth
}

func formatFlag(flag *Flag) string {
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !flag.isBool() && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func (a *App) writeFlag(sb *strings.Builder, flag *Flag, width, usageWidth int) {
	right := ""
	if !flag.isBool() && flag.DefValue != "" {
		right = "|" + flag.DefValue + "|"
	}
	writeEntry(sb, formatFlag(flag), flag.Usage, right, width, usageWidth)
}

func (a *App) writeGroup(sb *strings.Builder, group FlagGroup, width, usageWidth int) {
	if len(group.Flags) == 0 {
		return
	}
	prefix, kind := group.Flags[0].Prefix, group.GroupType
	if kind == "" {
		kind = "flag"
	}
	fmt.Fprintf(sb, "\n%s%s\n", indent(1), group.Name)
	fmt.Fprintf(sb, "%s%-*s Enable a specific %s\n", indent(2), width, fmt.Sprintf("-%s<%s>", prefix, kind), kind)
	fmt.Fprintf(sb, "%s%-*s Disable a specific %s\n", indent(2), width, fmt.Sprintf("-%sno-<%s>", prefix, kind), kind)
	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent(1), group.AvailableFlagsHeader)
	}

	entries := append([]FlagGroupEntry(nil), group.Flags...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, e := range entries {
		mark := "|-|"
		if e.Enabled != nil && *e.Enabled && (e.Disabled == nil || !*e.Disabled) {
			mark = "|x|"
		}
		writeEntry(sb, e.Name, e.Usage, mark, width, usageWidth)
	}
}

// writeEntry prints "left usage right" in aligned columns, wrapping the usage
// text to the terminal width.
func writeEntry(sb *strings.Builder, left, usage, right string, width, usageWidth int) {
	avail := terminalWidth() - len(indent(2)) - width - 3 - len(right)
	if avail < 10 {
		avail = 10
	}
	if usageWidth > avail {
		usageWidth = avail
	}
	lines := wrapText(usage, avail)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indent(2), width, left, usageWidth, first, right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indent(2), width, left, first)
	}
	for _, line := range lines[min(1, len(lines)):] {
		fmt.Fprintf(sb, "%s%s %s\n", indent(2), strings.Repeat(" ", width), line)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return max(width, 20)
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return words
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
