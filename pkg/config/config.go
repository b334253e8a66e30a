package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/typeof/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatDefaultVar Feature = iota
	FeatAccessorDot
	FeatMemberAccess
	FeatTypedefs
	FeatPtrArith
	FeatStrictOverloads
	FeatSequenceRight
	FeatCount
)

type Warning int

const (
	WarnOverloadFallback Warning = iota
	WarnDefaultVar
	WarnStrayChar
	WarnPedantic
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	StdName    string
	TargetArch string
	QbeTarget  string
	WordSize   int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		StdName:    "EDL",
		WordSize:   8,
	}

	features := map[Feature]Info{
		FeatDefaultVar:      {"default-var", true, "Type unknown identifiers as the dynamic 'var' type instead of failing."},
		FeatAccessorDot:     {"accessor-dot", true, "Treat '.' followed by a letter after a number as member access, not a decimal point."},
		FeatMemberAccess:    {"member-access", true, "Resolve '.', '->' and '::' member lookups."},
		FeatTypedefs:        {"typedefs", true, "Collapse typedef chains to their underlying type."},
		FeatPtrArith:        {"ptr-arith", false, "Model pointer-pointer=int and int+pointer=pointer instead of always keeping the left type."},
		FeatStrictOverloads: {"strict-overloads", false, "Fail when a binary operator has no overload instead of keeping the left type."},
		FeatSequenceRight:   {"sequence-right", false, "Type ',' and '?' by their right operand, the value they produce, instead of the left."},
	}

	warnings := map[Warning]Info{
		WarnOverloadFallback: {"overload-fallback", false, "Warn when a binary operator falls back to the left operand's type."},
		WarnDefaultVar:       {"default-var", true, "Warn when an unknown identifier is typed as 'var'."},
		WarnStrayChar:        {"stray-char", true, "Warn about characters that are not part of any token."},
		WarnPedantic:         {"pedantic", false, "Issue all warnings demanded by the strict standard."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget picks the QBE target for goos/goarch (or the given one) and
// derives the word size used for pointers and builtin types.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		qbeTarget = libqbe.DefaultTarget(goos, goarch)
	}
	c.QbeTarget, c.TargetArch = qbeTarget, goarch

	switch c.QbeTarget {
	case "arm", "rv32":
		c.WordSize = 4
	default:
		c.WordSize = 8
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyStd selects a dialect. "C" is strict: no untyped fallback and a '.'
// inside a number is always a decimal point. "EDL" is the permissive
// game-language dialect.
func (c *Config) ApplyStd(stdName string) error {
	isPedantic := c.IsWarningEnabled(WarnPedantic)

	type stdSettings struct {
		feature  Feature
		cValue   bool
		edlValue bool
	}

	settings := []stdSettings{
		{FeatDefaultVar, false, true},
		{FeatAccessorDot, false, true},
		{FeatMemberAccess, true, true},
		{FeatTypedefs, true, true},
		{FeatStrictOverloads, isPedantic, false},
	}

	switch stdName {
	case "C":
		for _, s := range settings {
			c.SetFeature(s.feature, s.cValue)
		}
		c.SetWarning(WarnDefaultVar, false)
		c.SetWarning(WarnOverloadFallback, isPedantic)
	case "EDL":
		for _, s := range settings {
			c.SetFeature(s.feature, s.edlValue)
		}
		c.SetWarning(WarnDefaultVar, true)
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'C', 'EDL'", stdName)
	}
	c.StdName = stdName
	return nil
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		name = trimmed
		isWarning = true
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
	}
}

// ProcessDirectiveFlags applies a whitespace separated list such as
// "-Wall -Fno-default-var".
func (c *Config) ProcessDirectiveFlags(flagStr string) {
	for _, flag := range strings.Fields(flagStr) {
		c.applyFlag(flag)
	}
}

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and -F<feature>/-Fno-<feature>
// on fs. The returned entries are indexed by Warning and Feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := false, false
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}

	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := false, false
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed -W/-F switches into the configuration.
// Explicit switches win over the standard's defaults.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
