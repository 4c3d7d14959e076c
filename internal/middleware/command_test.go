package middleware

import (
	"testing"
	"time"
)

func TestCommandResolution(t *testing.T) {
	set := NewCommandSet([]Command{
		{Name: "ban", Permissions: Permissions{Admin: true, Group: true}},
		{Name: "Ping"},
	})

	tests := []struct {
		name    string
		content string
		want    string // resolved command name, "" for nil
	}{
		{"slash prefix", "/ban @user", "ban"},
		{"bang prefix", "!ban spam", "ban"},
		{"case insensitive", "/PING", "Ping"},
		{"bot mention suffix", "/ban@gatewaybot now", "ban"},
		{"bare word is chat", "ban everyone", ""},
		{"unknown command", "/kick", ""},
		{"empty content", "", ""},
		{"prefix only", "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := set.Resolve(tt.content)
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("Resolve(%q) = %q, want nil", tt.content, got.Name)
			case tt.want != "" && got == nil:
				t.Errorf("Resolve(%q) = nil, want %q", tt.content, tt.want)
			case tt.want != "" && got.Name != tt.want:
				t.Errorf("Resolve(%q) = %q, want %q", tt.content, got.Name, tt.want)
			}
		})
	}
}

func TestResolvedCommandCarriesPermissions(t *testing.T) {
	set := NewCommandSet([]Command{
		{Name: "ban", Permissions: Permissions{Admin: true, Group: true}},
	})

	cmd := set.Resolve("/ban @user")
	if cmd == nil {
		t.Fatal("command not resolved")
	}
	if !cmd.Permissions.Admin || !cmd.Permissions.Group {
		t.Errorf("permissions = %+v", cmd.Permissions)
	}
}

func TestCommandBudget(t *testing.T) {
	if b := CommandBudget(0, 60); b != nil {
		t.Errorf("zero points budget = %+v, want nil", b)
	}
	if b := CommandBudget(5, 0); b != nil {
		t.Errorf("zero duration budget = %+v, want nil", b)
	}
	b := CommandBudget(5, 60)
	if b == nil || b.Points != 5 || b.Duration != time.Minute {
		t.Errorf("budget = %+v", b)
	}
}
