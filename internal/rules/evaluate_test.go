package rules

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/solatis/ticketkeeper/internal/types"
)

func testEvent() *types.Event {
	return &types.Event{
		EvID:         "evt-1",
		Device:       "router1",
		DeviceClass:  "/Network/Router",
		DeviceGroups: "|/Core|/Core/East",
		Systems:      "|/Production",
		Location:     "/Datacenter/A",
		Component:    "eth0",
		Summary:      "interface eth0 down",
		Message:      "link lost on eth0",
		IPAddress:    "10.0.0.1",
		Severity:     types.SeverityError,
		ProdState:    1000,
		EventState:   types.EventStateNew,
	}
}

func mustSection(t *testing.T, name string, pairs ...string) *Section {
	t.Helper()
	sec, err := Compile(name, opts(pairs...))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return sec
}

func TestSelector_Selects(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		want  bool
	}{
		{name: "empty section selects everything", want: true},
		{name: "device literal", pairs: []string{"device-1", "ROUTER1"}, want: true},
		{name: "device literal miss", pairs: []string{"device-1", "switch1"}, want: false},
		{name: "notdevice rejects", pairs: []string{"notdevice-1", "router1"}, want: false},
		{name: "notdevice other value", pairs: []string{"notdevice-1", "switch1"}, want: true},
		{name: "notdevice wins over device", pairs: []string{"device-1", "router1", "notdevice-1", "router1"}, want: false},
		{name: "notdevice regex wins over device", pairs: []string{"device-re-1", "^router", "notdevice-re-1", "1$"}, want: false},
		{name: "devicegroups any element", pairs: []string{"devicegroups-1", "/Core/East"}, want: true},
		{name: "notdevicegroups regex", pairs: []string{"notdevicegroups-re-1", "^/core"}, want: false},
		{name: "deviceclass regex", pairs: []string{"deviceclass-re-1", "router$"}, want: true},
		{name: "severity range", pairs: []string{"severity-min", "4"}, want: true},
		{name: "severity range miss", pairs: []string{"severity-min", "5"}, want: false},
		{name: "notseverity rejects", pairs: []string{"notseverity-1", "4"}, want: false},
		{name: "notseverity other value", pairs: []string{"notseverity-1", "5"}, want: true},
		{name: "prodstate list", pairs: []string{"prodstate-1", "1000", "prodstate-2", "500"}, want: true},
		{name: "eventstate list miss", pairs: []string{"eventstate-1", "1"}, want: false},
		{name: "summary regex", pairs: []string{"summary-re-1", "eth[0-9] down"}, want: true},
		{name: "notmessage rejects", pairs: []string{"notmessage-re-1", "link lost"}, want: false},
		{name: "component literal", pairs: []string{"component-1", "eth0"}, want: true},
		{name: "location miss", pairs: []string{"location-1", "/Datacenter/B"}, want: false},
		{name: "systems element", pairs: []string{"systems-1", "/production"}, want: true},
		{name: "notsystems rejects", pairs: []string{"notsystems-1", "/Production"}, want: false},
		{name: "ipaddress regex", pairs: []string{"ipaddress-re-1", `^10\.`}, want: true},
		{name: "notipaddress other", pairs: []string{"notipaddress-1", "10.0.0.2"}, want: true},
		{
			name: "all criteria hold",
			pairs: []string{
				"device-1", "router1",
				"severity-min", "3",
				"summary-re-1", "down",
				"notcomponent-1", "eth1",
			},
			want: true,
		},
	}

	log, _ := logtest.NewNullLogger()
	selector := NewSelector(log)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec := mustSection(t, "rule", tt.pairs...)
			got, err := selector.Selects(sec, testEvent())
			if err != nil {
				t.Fatalf("Selects() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("Selects() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelector_ShortCircuit(t *testing.T) {
	// An uncompiled malformed summary regex is only reached if device passes.
	sec := &Section{
		Name: "rule",
		Options: Options{
			{Name: "device-1", Value: "switch1"},
			{Name: "summary-re-1", Value: "down("},
		},
	}

	log, _ := logtest.NewNullLogger()
	selector := NewSelector(log)

	got, err := selector.Selects(sec, testEvent())
	if err != nil {
		t.Fatalf("Selects() error = %v, want nil (summary must not be evaluated)", err)
	}
	if got {
		t.Error("Selects() = true, want false")
	}

	sec.Options[0].Value = "router1"
	_, err = selector.Selects(sec, testEvent())
	var reErr *ErrInvalidRegex
	if !errors.As(err, &reErr) {
		t.Fatalf("Selects() error = %v, want *ErrInvalidRegex", err)
	}
	if reErr.Section != "rule" {
		t.Errorf("Section = %q, want %q", reErr.Section, "rule")
	}
}

func TestSelector_LogsFailingCriterion(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	selector := NewSelector(log)

	sec := mustSection(t, "rule", "notdevice-1", "router1")
	if ok, _ := selector.Selects(sec, testEvent()); ok {
		t.Fatal("Selects() = true, want false")
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no debug entry logged")
	}
	if entry.Message != "notdevice match fails" {
		t.Errorf("message = %q, want %q", entry.Message, "notdevice match fails")
	}
	if entry.Data["section"] != "rule" {
		t.Errorf("section field = %v, want rule", entry.Data["section"])
	}
}

func TestFields_Order(t *testing.T) {
	want := []string{
		"devicegroups", "device", "deviceclass", "prodstate", "eventstate", "severity",
		"summary", "message", "component", "location", "systems", "ipaddress",
	}
	got := Fields()
	if len(got) != len(want) {
		t.Fatalf("Fields() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
