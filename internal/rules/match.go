// internal/rules/match.go
package rules

import (
	"strings"

	"github.com/sirupsen/logrus"
)

/*
 * Predicate matching over a section's options.
 *
 * StringMatch: options named <prefix>-<x> hold literal values, options named
 * <prefix>-re-<x> hold case-insensitive regexes. Literal values match a
 * candidate by case-insensitive equality; regexes match by search (anywhere in
 * the candidate). Options are tried in file order and the first satisfied one
 * wins. If no option carries the prefix the caller's default applies, which
 * lets positive filters default to "accept" and negative filters to "don't
 * reject".
 *
 * IntMatch: <prefix>-min and <prefix>-max are inclusive bounds (all must
 * hold), any other <prefix>-<x> is a list member (one must equal the value).
 * With neither present the value matches.
 *
 * The prefix must be followed by '-', so "device" never picks up
 * "devicegroups-1" or "deviceclass-1".
 */

// StringMatch reports whether any <prefix>-* option matches one of the candidates.
// Returns defaultIfAbsent when no option carries the prefix, and
// *ErrInvalidRegex when a regex option cannot be compiled.
func StringMatch(opts Options, prefix string, candidates []string, defaultIfAbsent bool) (bool, error) {
	p := strings.ToLower(prefix) + "-"
	seen := false

	for _, opt := range opts {
		name := strings.ToLower(opt.Name)
		if !strings.HasPrefix(name, p) {
			continue
		}
		seen = true

		if strings.HasPrefix(name[len(p):], "re-") {
			re := opt.re
			if re == nil {
				var err error
				re, err = compilePattern(strings.TrimRight(opt.Value, " \t\r\n"))
				if err != nil {
					return false, &ErrInvalidRegex{Option: opt.Name, Pattern: opt.Value, Err: err}
				}
			}
			for _, c := range candidates {
				if re.MatchString(c) {
					return true, nil
				}
			}
			continue
		}

		want := strings.ToLower(strings.TrimRight(opt.Value, " \t\r\n"))
		for _, c := range candidates {
			if want == strings.ToLower(c) {
				return true, nil
			}
		}
	}

	if !seen {
		return defaultIfAbsent, nil
	}
	return false, nil
}

// IntMatch reports whether value satisfies the <prefix>-* range and list options.
// Malformed option values are logged through log and treated as 0.
func IntMatch(opts Options, prefix string, value int, log logrus.FieldLogger) bool {
	p := strings.ToLower(prefix) + "-"

	seenRange, inRange := false, true
	seenList, inList := false, false

	for _, opt := range opts {
		name := strings.ToLower(opt.Name)
		if !strings.HasPrefix(name, p) || len(name) == len(p) {
			continue
		}

		n := optionInt(opt, log)
		switch name[len(p):] {
		case "min":
			seenRange = true
			if value < n {
				inRange = false
			}
		case "max":
			seenRange = true
			if value > n {
				inRange = false
			}
		default:
			seenList = true
			if value == n {
				inList = true
			}
		}
	}

	if seenRange && !inRange {
		return false
	}
	if seenList {
		return inList
	}
	return true
}
