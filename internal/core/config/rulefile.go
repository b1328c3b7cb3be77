package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/ticketkeeper/internal/expand"
	"github.com/solatis/ticketkeeper/internal/rules"
	"github.com/solatis/ticketkeeper/internal/types"
	"gopkg.in/ini.v1"
)

// Reserved rule file sections. Neither is evaluated as a ticket rule.
const (
	SectionDaemon    = "DAEMONSTUFF"
	SectionAutoClear = "AUTOCLEAR"
)

// RuleFile is the parsed, compiled INI rule file.
type RuleFile struct {
	Path string

	// Daemon holds every DAEMONSTUFF option; all of them are template tokens.
	Daemon    rules.Options
	TTCommand string
	CycleTime time.Duration

	// Rules are the ticket rule sections in file order.
	Rules []*rules.Section

	// AutoClear is nil when the file has no AUTOCLEAR section.
	AutoClear *rules.Section
}

var iniOptions = ini.LoadOptions{
	InsensitiveKeys:            true,
	AllowPythonMultilineValues: true,
	IgnoreInlineComment:        true,
	PreserveSurroundedQuote:    true,
}

// LoadRuleFile reads and compiles the rule file at path.
func LoadRuleFile(path string) (*RuleFile, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	rf, err := ParseRuleFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}
	rf.Path = expanded
	return rf, nil
}

// ParseRuleFile parses rule file contents.
// DEFAULT options are inherited by every section that does not set them.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	f, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	defaults := sectionOptions(f.Section(ini.DefaultSection), nil)

	rf := &RuleFile{}
	foundDaemon := false

	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			continue
		}

		raw := sectionOptions(sec, defaults)

		switch name {
		case SectionDaemon:
			foundDaemon = true
			daemon, err := rules.Compile(name, raw)
			if err != nil {
				return nil, err
			}
			rf.Daemon = daemon.Options
		case SectionAutoClear:
			compiled, err := rules.Compile(name, raw)
			if err != nil {
				return nil, err
			}
			rf.AutoClear = compiled
		default:
			compiled, err := rules.Compile(name, raw)
			if err != nil {
				return nil, err
			}
			rf.Rules = append(rf.Rules, compiled)
		}
	}

	if !foundDaemon {
		return nil, fmt.Errorf("%w: %s", types.ErrMissingSection, SectionDaemon)
	}

	cmd, ok := rf.Daemon.Get("ttcommand")
	if !ok || strings.TrimSpace(cmd) == "" {
		return nil, fmt.Errorf("%w: %s.ttcommand", types.ErrMissingOption, SectionDaemon)
	}
	if _, err := expand.Split(cmd); err != nil {
		return nil, fmt.Errorf("invalid %s.ttcommand: %w", SectionDaemon, err)
	}
	rf.TTCommand = cmd

	cycle, ok := rf.Daemon.Get("cycletime")
	if !ok {
		return nil, fmt.Errorf("%w: %s.cycletime", types.ErrMissingOption, SectionDaemon)
	}
	secs, valid := rules.CoerceInt(cycle)
	if !valid || secs <= 0 {
		return nil, fmt.Errorf("%w: got %q", types.ErrInvalidCycleTime, cycle)
	}
	rf.CycleTime = time.Duration(secs) * time.Second

	return rf, nil
}

// SectionNames returns the ticket rule section names in evaluation order.
func (rf *RuleFile) SectionNames() []string {
	names := make([]string, len(rf.Rules))
	for i, sec := range rf.Rules {
		names[i] = sec.Name
	}
	return names
}

// sectionOptions lists sec's keys in file order followed by defaults it does not override.
func sectionOptions(sec *ini.Section, defaults []rules.Option) []rules.Option {
	var out []rules.Option
	seen := make(map[string]bool)

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		seen[name] = true
		out = append(out, rules.Option{Name: name, Value: stripInlineComment(key.String())})
	}
	for _, opt := range defaults {
		if !seen[opt.Name] {
			out = append(out, opt)
		}
	}
	return out
}

// stripInlineComment drops a ';' comment from the first line of value when
// the first ';' follows whitespace. Later ';' and '#' are kept, so
// "4 ; critical" becomes "4" while "a;b" and "x.*#y" stay as written.
func stripInlineComment(value string) string {
	first, rest, multiline := strings.Cut(value, "\n")
	pos := strings.IndexByte(first, ';')
	if pos <= 0 || (first[pos-1] != ' ' && first[pos-1] != '\t') {
		return value
	}
	first = strings.TrimRight(first[:pos], " \t")
	if multiline {
		return first + "\n" + rest
	}
	return first
}
