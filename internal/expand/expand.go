// Package expand turns a ticket command template into an argument list.
//
// The template is split with POSIX shell quoting rules, then every argument
// is scanned for %token% references which are replaced from a Substitutions
// map. Unknown tokens are left exactly as written, delimiters included.
// Expansion is pure: the same template, options and event always produce the
// same arguments.
package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/solatis/ticketkeeper/internal/rules"
	"github.com/solatis/ticketkeeper/internal/types"
)

var tokenPattern = regexp.MustCompile(`%[A-Za-z0-9_-]+%`)

// Substitutions maps lower-cased "%name%" tokens to replacement text.
type Substitutions map[string]string

// Lookup returns the replacement for token, case-insensitively.
// token includes the surrounding percent signs.
func (s Substitutions) Lookup(token string) (string, bool) {
	v, ok := s[strings.ToLower(token)]
	return v, ok
}

func (s Substitutions) set(name, value string) {
	s["%"+strings.ToLower(name)+"%"] = value
}

func (s Substitutions) setDefault(name, value string) {
	key := "%" + strings.ToLower(name) + "%"
	if _, ok := s[key]; !ok {
		s[key] = value
	}
}

// NewSubstitutions builds the token map for one ticket attempt.
// Section params override daemon options; event fields only fill names not
// already set by either.
func NewSubstitutions(global, params rules.Options, evt *types.Event) Substitutions {
	subs := make(Substitutions, len(global)+len(params)+len(eventFieldNames))

	for _, opt := range global {
		subs.set(opt.Name, strings.TrimRight(opt.Value, " \t\r\n"))
	}
	for _, opt := range params {
		subs.set(opt.Name, opt.Value)
	}
	if evt != nil {
		for _, f := range EventFields(evt) {
			subs.setDefault(f.Name, f.Value)
		}
	}

	return subs
}

// Split tokenizes a command template with shell quoting rules.
// '#' is an ordinary character, not a comment.
func Split(template string) ([]string, error) {
	args, err := shellquote.Split(template)
	if err != nil {
		return nil, fmt.Errorf("failed to split command template: %w", err)
	}
	return args, nil
}

// Arg rewrites every %token% in arg found in subs.
func Arg(arg string, subs Substitutions) string {
	return tokenPattern.ReplaceAllStringFunc(arg, func(token string) string {
		if v, ok := subs.Lookup(token); ok {
			return v
		}
		return token
	})
}

// Args rewrites each argument. The input slice is not modified.
func Args(args []string, subs Substitutions) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Arg(a, subs)
	}
	return out
}

// Command splits template and substitutes tokens from the daemon options,
// section params and event.
func Command(template string, global, params rules.Options, evt *types.Event) ([]string, error) {
	args, err := Split(template)
	if err != nil {
		return nil, err
	}
	return Args(args, NewSubstitutions(global, params, evt)), nil
}

// Field is one event attribute exposed to templates.
type Field struct {
	Name  string
	Value string
}

var eventFieldNames = []string{
	"evid", "device", "component", "eventclass", "eventkey", "summary", "message",
	"severity", "eventstate", "eventclasskey", "eventgroup", "statechange",
	"firsttime", "lasttime", "count", "prodstate", "suppid", "manager", "agent",
	"deviceclass", "location", "systems", "devicegroups", "ipaddress", "facility",
	"priority", "ntevid", "ownerid", "clearid", "devicepriority", "eventclassmapping",
}

// FieldNames returns the names of the event tokens, in the order EventFields emits them.
func FieldNames() []string {
	return append([]string(nil), eventFieldNames...)
}

// EventFields renders the event attributes available as %name% tokens.
func EventFields(evt *types.Event) []Field {
	values := []string{
		string(evt.EvID),
		evt.Device,
		evt.Component,
		evt.EventClass,
		evt.EventKey,
		evt.Summary,
		evt.Message,
		strconv.Itoa(evt.Severity),
		strconv.Itoa(int(evt.EventState)),
		evt.EventClassKey,
		strings.TrimLeft(evt.EventGroup, "|"),
		formatTime(evt.StateChange),
		formatTime(evt.FirstTime),
		formatTime(evt.LastTime),
		strconv.Itoa(evt.Count),
		strconv.Itoa(evt.ProdState),
		evt.SuppID,
		evt.Manager,
		evt.Agent,
		evt.DeviceClass,
		evt.Location,
		strings.TrimLeft(evt.Systems, "|"),
		strings.TrimLeft(evt.DeviceGroups, "|"),
		evt.IPAddress,
		strconv.Itoa(evt.Facility),
		strconv.Itoa(evt.Priority),
		strconv.Itoa(evt.NtEvID),
		evt.OwnerID,
		evt.ClearID,
		strconv.Itoa(evt.DevicePriority),
		evt.EventClassMapping,
	}

	fields := make([]Field, len(eventFieldNames))
	for i, name := range eventFieldNames {
		fields[i] = Field{Name: name, Value: values[i]}
	}
	return fields
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(types.TimeFormat)
}
