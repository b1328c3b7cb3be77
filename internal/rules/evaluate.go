// internal/rules/evaluate.go
package rules

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/solatis/ticketkeeper/internal/types"
)

/*
 * Event selection.
 *
 * A section selects an event when every criterion accepts it. Criteria are
 * evaluated in a fixed order and evaluation stops at the first rejection, so a
 * later criterion (and any error it could raise) is never reached once an
 * earlier one fails.
 *
 * Each criterion is a pair:
 *   - positive <field>-*:     must match, accepts when absent
 *   - negative not<field>-*:  must not match, ignored when absent
 *
 * Integer criteria use IntMatch for both sides; the negative side only
 * rejects when not<field>-* options exist, since IntMatch is vacuously true
 * without options.
 *
 * Multi-valued fields (DeviceGroups, Systems) are split on '|' and a criterion
 * matches when any element matches. The leading '|' yields an empty first
 * element, which only a literal empty option value can match.
 */

type criterionKind int

const (
	textCriterion criterionKind = iota
	intCriterion
)

type criterion struct {
	field string
	kind  criterionKind
	text  func(*types.Event) []string
	num   func(*types.Event) int
}

func single(f func(*types.Event) string) func(*types.Event) []string {
	return func(e *types.Event) []string { return []string{f(e)} }
}

func multi(f func(*types.Event) string) func(*types.Event) []string {
	return func(e *types.Event) []string { return strings.Split(f(e), "|") }
}

// criteria lists the selection criteria in evaluation order.
var criteria = []criterion{
	{field: "devicegroups", kind: textCriterion, text: multi(func(e *types.Event) string { return e.DeviceGroups })},
	{field: "device", kind: textCriterion, text: single(func(e *types.Event) string { return e.Device })},
	{field: "deviceclass", kind: textCriterion, text: single(func(e *types.Event) string { return e.DeviceClass })},
	{field: "prodstate", kind: intCriterion, num: func(e *types.Event) int { return e.ProdState }},
	{field: "eventstate", kind: intCriterion, num: func(e *types.Event) int { return int(e.EventState) }},
	{field: "severity", kind: intCriterion, num: func(e *types.Event) int { return e.Severity }},
	{field: "summary", kind: textCriterion, text: single(func(e *types.Event) string { return e.Summary })},
	{field: "message", kind: textCriterion, text: single(func(e *types.Event) string { return e.Message })},
	{field: "component", kind: textCriterion, text: single(func(e *types.Event) string { return e.Component })},
	{field: "location", kind: textCriterion, text: single(func(e *types.Event) string { return e.Location })},
	{field: "systems", kind: textCriterion, text: multi(func(e *types.Event) string { return e.Systems })},
	{field: "ipaddress", kind: textCriterion, text: single(func(e *types.Event) string { return e.IPAddress })},
}

// Fields returns the criterion field names in evaluation order.
func Fields() []string {
	names := make([]string, len(criteria))
	for i, c := range criteria {
		names[i] = c.field
	}
	return names
}

// evaluate returns the name of the rejecting filter, or "" when the criterion accepts.
func (c criterion) evaluate(opts Options, evt *types.Event, log logrus.FieldLogger) (string, error) {
	negated := "not" + c.field

	if c.kind == intCriterion {
		v := c.num(evt)
		if !IntMatch(opts, c.field, v, log) {
			return c.field, nil
		}
		if opts.HasPrefix(negated) && IntMatch(opts, negated, v, log) {
			return negated, nil
		}
		return "", nil
	}

	values := c.text(evt)
	ok, err := StringMatch(opts, c.field, values, true)
	if err != nil {
		return "", err
	}
	if !ok {
		return c.field, nil
	}
	rejected, err := StringMatch(opts, negated, values, false)
	if err != nil {
		return "", err
	}
	if rejected {
		return negated, nil
	}
	return "", nil
}

// Selector decides whether a rule section applies to an event.
type Selector struct {
	log logrus.FieldLogger
}

// NewSelector creates a Selector that logs rejections and malformed options to log.
func NewSelector(log logrus.FieldLogger) *Selector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Selector{log: log}
}

// Selects reports whether every criterion of sec accepts evt.
// A malformed regex reached during evaluation is returned as an error.
func (s *Selector) Selects(sec *Section, evt *types.Event) (bool, error) {
	log := s.log.WithFields(logrus.Fields{
		"section": sec.Name,
		"evid":    evt.EvID,
	})

	for _, c := range criteria {
		failed, err := c.evaluate(sec.Options, evt, log)
		if err != nil {
			if re, ok := err.(*ErrInvalidRegex); ok && re.Section == "" {
				re.Section = sec.Name
			}
			return false, fmt.Errorf("failed to evaluate %s: %w", c.field, err)
		}
		if failed != "" {
			log.Debugf("%s match fails", failed)
			return false, nil
		}
	}

	return true, nil
}
