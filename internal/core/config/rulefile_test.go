package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/ticketkeeper/internal/rules"
	"github.com/solatis/ticketkeeper/internal/types"
)

const sampleRules = `
[DEFAULT]
param-queue = ops

[DAEMONSTUFF]
TTCommand = /opt/tt/create --queue %param-queue% --device %device% "%summary%"
cycletime = 60

[Core routers]
devicegroups-1 = /Core
severity-min = 4 ; critical-ish
param-queue = network

[AUTOCLEAR]
severity-max = 2

[Databases]
deviceclass-re-1 = ^/Server/DB
summary-re-1 = tablespace.*#full
message-re-1 = ORA-0;1
`

func TestParseRuleFile(t *testing.T) {
	rf, err := ParseRuleFile([]byte(sampleRules))
	if err != nil {
		t.Fatalf("ParseRuleFile() error = %v, want nil", err)
	}

	if rf.CycleTime != 60*time.Second {
		t.Errorf("CycleTime = %v, want 60s", rf.CycleTime)
	}
	if rf.TTCommand != `/opt/tt/create --queue %param-queue% --device %device% "%summary%"` {
		t.Errorf("TTCommand = %q", rf.TTCommand)
	}

	names := rf.SectionNames()
	if len(names) != 2 || names[0] != "Core routers" || names[1] != "Databases" {
		t.Fatalf("SectionNames() = %v, want [Core routers Databases]", names)
	}

	if rf.AutoClear == nil {
		t.Fatal("AutoClear = nil, want section")
	}
	if v, _ := rf.AutoClear.Options.Get("severity-max"); v != "2" {
		t.Errorf("AUTOCLEAR severity-max = %q, want 2", v)
	}

	core := rf.Rules[0]
	if v, _ := core.Options.Get("param-queue"); v != "network" {
		t.Errorf("Core routers param-queue = %q, want section value network", v)
	}
	db := rf.Rules[1]
	if v, _ := db.Options.Get("param-queue"); v != "ops" {
		t.Errorf("Databases param-queue = %q, want inherited ops", v)
	}
	if v, _ := core.Options.Get("severity-min"); v != "4" {
		t.Errorf("Core routers severity-min = %q, want inline comment stripped", v)
	}
	if v, _ := db.Options.Get("message-re-1"); v != "ORA-0;1" {
		t.Errorf("message-re-1 = %q, want ; without leading space kept", v)
	}
	if v, _ := db.Options.Get("summary-re-1"); v != "tablespace.*#full" {
		t.Errorf("summary-re-1 = %q, want value with # preserved", v)
	}

	if _, ok := rf.Daemon.Get("ttcommand"); !ok {
		t.Error("DAEMONSTUFF option names not lower-cased")
	}
}

func TestParseRuleFile_HashInCommand(t *testing.T) {
	content := "[DAEMONSTUFF]\nttcommand = create.sh --tag #%evid% --dev %device%\ncycletime = 60\n"
	rf, err := ParseRuleFile([]byte(content))
	if err != nil {
		t.Fatalf("ParseRuleFile() error = %v, want nil", err)
	}
	if rf.TTCommand != "create.sh --tag #%evid% --dev %device%" {
		t.Errorf("TTCommand = %q, want # and trailing arguments kept", rf.TTCommand)
	}
}

func TestStripInlineComment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4 ; critical-ish", "4"},
		{"4\t;note", "4"},
		{"a;b", "a;b"},
		{";leading", ";leading"},
		{"a;b ; c", "a;b ; c"},
		{"x.*#y", "x.*#y"},
		{"first ; c\nsecond ; kept", "first\nsecond ; kept"},
		{"first\nsecond ; kept", "first\nsecond ; kept"},
	}
	for _, tt := range tests {
		if got := stripInlineComment(tt.in); got != tt.want {
			t.Errorf("stripInlineComment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRuleFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing daemon section",
			content: "[rule]\ndevice-1 = a\n",
			wantErr: types.ErrMissingSection,
		},
		{
			name:    "missing ttcommand",
			content: "[DAEMONSTUFF]\ncycletime = 10\n",
			wantErr: types.ErrMissingOption,
		},
		{
			name:    "missing cycletime",
			content: "[DAEMONSTUFF]\nttcommand = /bin/tt\n",
			wantErr: types.ErrMissingOption,
		},
		{
			name:    "non-integer cycletime",
			content: "[DAEMONSTUFF]\nttcommand = /bin/tt\ncycletime = soon\n",
			wantErr: types.ErrInvalidCycleTime,
		},
		{
			name:    "zero cycletime",
			content: "[DAEMONSTUFF]\nttcommand = /bin/tt\ncycletime = 0\n",
			wantErr: types.ErrInvalidCycleTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleFile([]byte(tt.content))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseRuleFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRuleFile_InvalidRegex(t *testing.T) {
	content := "[DAEMONSTUFF]\nttcommand = /bin/tt\ncycletime = 5\n\n[bad]\nsummary-re-1 = disk(\n"

	_, err := ParseRuleFile([]byte(content))

	var reErr *rules.ErrInvalidRegex
	if !errors.As(err, &reErr) {
		t.Fatalf("ParseRuleFile() error = %v, want *rules.ErrInvalidRegex", err)
	}
	if reErr.Section != "bad" {
		t.Errorf("Section = %q, want bad", reErr.Section)
	}
}

func TestLoadRuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticketkeeper.conf")
	if err := os.WriteFile(path, []byte(sampleRules), 0o600); err != nil {
		t.Fatal(err)
	}

	rf, err := LoadRuleFile(path)
	if err != nil {
		t.Fatalf("LoadRuleFile() error = %v, want nil", err)
	}
	if rf.Path != path {
		t.Errorf("Path = %q, want %q", rf.Path, path)
	}

	if _, err := LoadRuleFile(filepath.Join(t.TempDir(), "missing.conf")); err == nil {
		t.Error("LoadRuleFile() error = nil for missing file")
	}
}
