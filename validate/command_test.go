package validate

import "testing"

func TestValidator_Command(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name       string
		command    string
		args       []string
		wantReason Reason
	}{
		{
			name:    "plain command",
			command: "ls",
			args:    []string{"-la", "/workspace"},
		},
		{
			name:    "grep with flags",
			command: "grep",
			args:    []string{"-rn", "TODO", "."},
		},
		{
			name:       "empty command",
			command:    "  ",
			wantReason: ReasonEmpty,
		},
		{
			name:       "rm is blocked",
			command:    "rm",
			args:       []string{"-rf", "/"},
			wantReason: ReasonBlockedCommand,
		},
		{
			name:       "blocked command with directory prefix",
			command:    "/bin/rm",
			args:       []string{"-rf", "/tmp"},
			wantReason: ReasonBlockedCommand,
		},
		{
			name:       "sudo is blocked",
			command:    "sudo",
			args:       []string{"apt", "install"},
			wantReason: ReasonBlockedCommand,
		},
		{
			name:       "semicolon chaining",
			command:    "echo",
			args:       []string{"hi; cat /etc/passwd"},
			wantReason: ReasonShellMeta,
		},
		{
			name:       "pipe",
			command:    "cat",
			args:       []string{"file", "|", "sh"},
			wantReason: ReasonShellMeta,
		},
		{
			name:       "command substitution",
			command:    "echo",
			args:       []string{"$(whoami)"},
			wantReason: ReasonShellMeta,
		},
		{
			name:       "backticks",
			command:    "echo",
			args:       []string{"`id`"},
			wantReason: ReasonShellMeta,
		},
		{
			name:       "double ampersand",
			command:    "true",
			args:       []string{"&&", "false"},
			wantReason: ReasonShellMeta,
		},
		{
			name:       "redirect into etc",
			command:    "echo",
			args:       []string{"x", ">", "/etc/passwd"},
			wantReason: ReasonShellMeta,
		},
		{
			name:       "newline in args",
			command:    "echo",
			args:       []string{"a\nb"},
			wantReason: ReasonControlBytes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Command(tt.command, tt.args)

			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("Command(%q, %v) error = %v, want nil", tt.command, tt.args, err)
				}
				return
			}

			reason, ok := ReasonOf(err)
			if !ok {
				t.Fatalf("Command(%q, %v) error = %v, want *validate.Error", tt.command, tt.args, err)
			}
			if reason != tt.wantReason {
				t.Errorf("Command(%q, %v) reason = %s, want %s", tt.command, tt.args, reason, tt.wantReason)
			}
		})
	}
}

func TestValidator_Command_Redirection(t *testing.T) {
	v, err := New(Config{
		AllowedDirs:     []string{"/workspace"},
		BlockedCommands: []string{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// With an empty metacharacter-free invocation the redirect scan is
	// still reachable: "tee" style redirection without | ; & $ `
	err = v.Command("tee", []string{">/etc/hosts"})
	if reason, _ := ReasonOf(err); reason != ReasonRedirection {
		t.Errorf("Command(tee >/etc/hosts) reason = %v, want %s", err, ReasonRedirection)
	}
}

func TestValidator_Command_CustomBlocklist(t *testing.T) {
	v, err := New(Config{
		AllowedDirs:     []string{"/workspace"},
		BlockedCommands: []string{"curl"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := v.Command("rm", []string{"file"}); err != nil {
		t.Errorf("Command(rm) error = %v, custom blocklist should replace defaults", err)
	}
	if err := v.Command("curl", []string{"http://example.com"}); err == nil {
		t.Error("Command(curl) should be rejected by the custom blocklist")
	}
}
