package expand

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/ticketkeeper/internal/rules"
	"github.com/solatis/ticketkeeper/internal/types"
)

func sampleEvent() *types.Event {
	return &types.Event{
		EvID:         "abc-123",
		Device:       "router1",
		Summary:      "link down",
		Severity:     types.SeverityError,
		DeviceGroups: "|/Core|/Core/East",
		Systems:      "|/Production",
		EventGroup:   "|Net",
		FirstTime:    time.Date(2024, 3, 1, 9, 30, 0, 250e6, time.UTC),
	}
}

func TestCommand(t *testing.T) {
	global := rules.Options{
		{Name: "ttcommand", Value: "/bin/tt --dev %device% --sev %severity%"},
		{Name: "cycletime", Value: "60"},
	}

	tests := []struct {
		name     string
		template string
		params   rules.Options
		want     []string
	}{
		{
			name:     "event fields",
			template: "/bin/tt --dev %device% --sev %severity%",
			want:     []string{"/bin/tt", "--dev", "router1", "--sev", "4"},
		},
		{
			name:     "quoted argument keeps spaces",
			template: `/bin/tt "%summary% on %device%"`,
			want:     []string{"/bin/tt", "link down on router1"},
		},
		{
			name:     "unknown token left verbatim",
			template: "/bin/tt %nosuch% 100%",
			want:     []string{"/bin/tt", "%nosuch%", "100%"},
		},
		{
			name:     "tokens ignore case",
			template: "/bin/tt %DEVICE% %Summary%",
			want:     []string{"/bin/tt", "router1", "link down"},
		},
		{
			name:     "params override",
			template: "/bin/tt -q %param-queue%",
			params:   rules.Options{{Name: "param-queue", Value: "network"}},
			want:     []string{"/bin/tt", "-q", "network"},
		},
		{
			name:     "daemon options available",
			template: "/bin/tt every %cycletime%",
			want:     []string{"/bin/tt", "every", "60"},
		},
		{
			name:     "adjacent tokens",
			template: "/bin/tt %device%%severity%",
			want:     []string{"/bin/tt", "router14"},
		},
		{
			name:     "leading pipe stripped",
			template: "/bin/tt %devicegroups% %systems% %eventgroup%",
			want:     []string{"/bin/tt", "/Core|/Core/East", "/Production", "Net"},
		},
		{
			name:     "hash is not a comment",
			template: "create.sh --tag #%evid% --dev %device%",
			want:     []string{"create.sh", "--tag", "#abc-123", "--dev", "router1"},
		},
		{
			name:     "timestamps",
			template: "/bin/tt %firsttime% x%lasttime%x",
			want:     []string{"/bin/tt", "2024/03/01 09:30:00.250", "xx"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Command(tt.template, global, tt.params, sampleEvent())
			if err != nil {
				t.Fatalf("Command() error = %v, want nil", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Command() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSubstitutions_Precedence(t *testing.T) {
	global := rules.Options{{Name: "device", Value: "from-daemon"}, {Name: "param-q", Value: "global-q"}}
	params := rules.Options{{Name: "param-q", Value: "section-q"}}

	subs := NewSubstitutions(global, params, sampleEvent())

	if v, _ := subs.Lookup("%param-q%"); v != "section-q" {
		t.Errorf("%%param-q%% = %q, want section-q", v)
	}
	if v, _ := subs.Lookup("%DEVICE%"); v != "from-daemon" {
		t.Errorf("%%device%% = %q, want from-daemon (event fields do not override)", v)
	}
	if v, _ := subs.Lookup("%summary%"); v != "link down" {
		t.Errorf("%%summary%% = %q, want link down", v)
	}
}

func TestEventFields_Complete(t *testing.T) {
	fields := EventFields(sampleEvent())
	if len(fields) != 31 {
		t.Fatalf("EventFields() len = %d, want 31", len(fields))
	}
	for i, name := range FieldNames() {
		if fields[i].Name != name {
			t.Errorf("field %d = %q, want %q", i, fields[i].Name, name)
		}
	}
}

func TestSplit_Unterminated(t *testing.T) {
	if _, err := Split(`/bin/tt "open`); err == nil {
		t.Error("Split() error = nil, want error for unterminated quote")
	}
}

func TestArgs_Pure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("expansion is deterministic and leaves input intact", prop.ForAll(
		func(device, summary, literal string) bool {
			evt := sampleEvent()
			evt.Device = device
			evt.Summary = summary
			in := []string{"/bin/tt", "%device%", literal, "%summary%-%device%"}
			orig := append([]string(nil), in...)

			subs := NewSubstitutions(nil, nil, evt)
			a := Args(in, subs)
			b := Args(in, NewSubstitutions(nil, nil, evt))

			return reflect.DeepEqual(a, b) &&
				reflect.DeepEqual(in, orig) &&
				a[1] == device &&
				a[3] == summary+"-"+device
		},
		gen.AlphaString(),
		gen.AnyString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
