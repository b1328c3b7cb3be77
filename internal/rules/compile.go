// internal/rules/compile.go
package rules

import (
	"fmt"
	"regexp"
	"strings"
)

/*
 * Rule section compilation.
 *
 * A rule section is an ordered list of option name -> string value pairs taken
 * from one INI section. Compile normalises names to lower case, right-trims
 * values and pre-compiles every regex option so a malformed pattern is
 * rejected when the rule file is loaded rather than mid-cycle.
 *
 * Regex options are named <field>-re-<anything> (optionally not<field>-...).
 * param-* options are substitution values and are never compiled.
 *
 * Patterns compile case-insensitively. Go's RE2 syntax rejects lookaround and
 * backreferences; such patterns surface as ErrInvalidRegex.
 */

// Option is one name/value pair of a rule section.
type Option struct {
	Name  string
	Value string

	re *regexp.Regexp // non-nil for compiled regex options
}

// Options is an ordered option list. Order follows the rule file.
type Options []Option

// Get returns the value of the named option, case-insensitively.
func (o Options) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, opt := range o {
		if strings.ToLower(opt.Name) == name {
			return opt.Value, true
		}
	}
	return "", false
}

// HasPrefix reports whether any option is named <prefix>-<something>.
func (o Options) HasPrefix(prefix string) bool {
	p := strings.ToLower(prefix) + "-"
	for _, opt := range o {
		name := strings.ToLower(opt.Name)
		if strings.HasPrefix(name, p) && len(name) > len(p) {
			return true
		}
	}
	return false
}

// Section is a compiled rule section.
type Section struct {
	Name    string
	Options Options
}

// ParamPrefix marks options that feed the command template instead of matching.
const ParamPrefix = "param-"

// Params returns the section's param-* options in file order.
func (s *Section) Params() Options {
	var params Options
	for _, opt := range s.Options {
		if strings.HasPrefix(opt.Name, ParamPrefix) {
			params = append(params, opt)
		}
	}
	return params
}

// Compile builds a Section from raw options.
// Returns *ErrInvalidRegex for the first regex option that fails to compile.
func Compile(name string, raw []Option) (*Section, error) {
	sec := &Section{Name: name, Options: make(Options, 0, len(raw))}

	for _, opt := range raw {
		opt.Name = strings.ToLower(strings.TrimSpace(opt.Name))
		opt.Value = strings.TrimRight(opt.Value, " \t\r\n")
		opt.re = nil

		if isRegexOption(opt.Name) {
			re, err := compilePattern(opt.Value)
			if err != nil {
				return nil, &ErrInvalidRegex{Section: name, Option: opt.Name, Pattern: opt.Value, Err: err}
			}
			opt.re = re
		}

		sec.Options = append(sec.Options, opt)
	}

	return sec, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// statically known sections.
func MustCompile(name string, raw []Option) *Section {
	sec, err := Compile(name, raw)
	if err != nil {
		panic(fmt.Sprintf("rules: Compile(%q): %v", name, err))
	}
	return sec
}

// isRegexOption reports whether name has the <prefix>-re-<x> shape.
func isRegexOption(name string) bool {
	if strings.HasPrefix(name, ParamPrefix) {
		return false
	}
	idx := strings.Index(name, "-")
	return idx > 0 && strings.HasPrefix(name[idx+1:], "re-")
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}
