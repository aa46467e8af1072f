package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmdguard(t *testing.T, stdin string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var outBuf, errBuf bytes.Buffer
	exitCode = run(args, strings.NewReader(stdin), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), exitCode
}

func makeInput(tool string, toolInput map[string]interface{}) string {
	input := map[string]interface{}{
		"hook_event_name": "PreToolUse",
		"session_id":      "test-session",
		"cwd":             "/repo",
		"tool_name":       tool,
		"tool_input":      toolInput,
	}
	data, _ := json.Marshal(input)
	return string(data)
}

func makeBashInput(command string) string {
	return makeInput("Bash", map[string]interface{}{"command": command})
}

func TestHookAllows(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
	}{
		{"go test", "go test ./..."},
		{"git status", "git status"},
		{"python script", "python script.py"},
		{"python inline", `python -c "print(1)"`},
		{"virtualenv", ".venv/bin/python3 -m pytest"},
		{"pinned flake", "nix run path:./flake#out"},
		{"bun", "bun install"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, exitCode := runCmdguard(t, makeBashInput(tt.cmd), "hook")
			assert.Equal(t, 0, exitCode, "stderr: %s", stderr)
			assert.Equal(t, `{"decision":"allow"}`+"\n", stdout)
			assert.Empty(t, stderr)
		})
	}
}

func TestHookBlocks(t *testing.T) {
	tests := []struct {
		name   string
		cmd    string
		reason string
	}{
		{"sudo", "sudo ls", "privilege escalation"},
		{"nested sudo", `bash -c "eval 'sudo id'"`, "privilege escalation"},
		{"interactive python", "python", "interactive session"},
		{"git commit", `git commit -m "x"`, "change the repository"},
		{"bare flake", "nix run ./flake#out", "bare paths"},
		{"substitution", "echo $(node --version)", "node"},
		{"backticks", "echo `node --version`", "node"},
		{"sequence", "ls; node --version", "node"},
		{"and list", "ls && node --version", "node"},
		{"env prefix", "NODE_ENV=prod node app.js", "node"},
		{"shell inline", `bash -c "node --version"`, "node"},
		{"unterminated quote", `echo "oops`, "could not verify command safety"},
		{"deep nesting", strings.Repeat("echo $(", 10) + "ls" + strings.Repeat(")", 10), "too deeply nested"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, exitCode := runCmdguard(t, makeBashInput(tt.cmd), "hook")
			assert.Equal(t, 2, exitCode)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tt.reason)
		})
	}
}

func TestHookWarns(t *testing.T) {
	stdout, _, exitCode := runCmdguard(t, makeBashInput("echo x > Cargo.lock"), "hook")
	assert.Equal(t, 0, exitCode)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "allow", out["decision"])
	assert.Contains(t, out["reason"], "cargo update")
}

func TestHookFileTools(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		input    map[string]interface{}
		exitCode int
	}{
		{"write npm lock", "Write", map[string]interface{}{"file_path": "/repo/package-lock.json", "content": "{}"}, 2},
		{"edit flake lock", "Edit", map[string]interface{}{"file_path": "/repo/flake.lock"}, 2},
		{"multi edit poetry lock", "MultiEdit", map[string]interface{}{"file_path": "/repo/poetry.lock"}, 2},
		{"edit manifest", "Edit", map[string]interface{}{"file_path": "/repo/package.json"}, 0},
		{"notebook", "NotebookEdit", map[string]interface{}{"notebook_path": "/repo/nb.ipynb"}, 0},
		{"read lock file", "Read", map[string]interface{}{"file_path": "/repo/yarn.lock"}, 0},
		{"glob", "Glob", map[string]interface{}{"pattern": "**/*.lock"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, exitCode := runCmdguard(t, makeInput(tt.tool, tt.input), "hook")
			assert.Equal(t, tt.exitCode, exitCode, "stderr: %s", stderr)
		})
	}
}

func TestHookMissingCommand(t *testing.T) {
	_, stderr, exitCode := runCmdguard(t, makeInput("Bash", map[string]interface{}{}), "hook")
	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stderr, "no command")
}

func TestHookInvalidInput(t *testing.T) {
	for _, input := range []string{"", "not json", `{"tool_name": 1}`} {
		stdout, stderr, exitCode := runCmdguard(t, input, "hook")
		assert.Equal(t, 1, exitCode, "input %q", input)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "cannot decode hook input")
	}
}

func TestHookLogsToConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "hook.log")
	configPath := filepath.Join(dir, "config.yml")
	content := "log:\n  level: debug\n  format: json\n  file: " + logPath + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	stdout, stderr, exitCode := runCmdguard(t, makeBashInput("sudo ls"), "hook", "--config", configPath)
	assert.Equal(t, 2, exitCode)
	assert.Empty(t, stdout)
	assert.NotContains(t, stderr, "hook decision")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "privilege-escalation", entry["rule"])
	assert.Equal(t, "test-session", entry["session_id"])
	assert.Len(t, entry["decision_id"], 26)
}

func TestHookIgnoresBrokenConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: loud\n"), 0644))

	_, stderr, exitCode := runCmdguard(t, makeBashInput("sudo ls"), "hook", "--config", configPath)
	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stderr, "privilege escalation")
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		exitCode int
		output   string
	}{
		{
			name:     "allowed",
			args:     []string{"check", "git", "status"},
			exitCode: 0,
			output:   "ALLOW git status\n",
		},
		{
			name:     "flags after command",
			args:     []string{"check", "ls", "-la"},
			exitCode: 0,
			output:   "ALLOW ls -la\n",
		},
		{
			name:     "separator",
			args:     []string{"check", "--", "sudo", "-u", "root", "id"},
			exitCode: 2,
			output:   "BLOCK sudo -u root id\n      sudo: privilege escalation is not allowed; run the command without elevated privileges, or ask the user to run it\n",
		},
		{
			name:     "single argument",
			args:     []string{"check", "ls && vim notes.txt"},
			exitCode: 2,
			output:   "BLOCK ls && vim notes.txt\n      vim: interactive editors wait for keyboard input; use the file edit tool, or sed -i for scripted edits\n",
		},
		{
			name:     "stdin",
			stdin:    "npm install\n",
			args:     []string{"check"},
			exitCode: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, exitCode := runCmdguard(t, tt.stdin, append([]string{"--color", "never"}, tt.args...)...)
			assert.Equal(t, tt.exitCode, exitCode, "stderr: %s", stderr)
			if tt.output != "" {
				assert.Equal(t, tt.output, stdout)
			}
		})
	}
}

func TestCheckEmptyStdin(t *testing.T) {
	_, stderr, exitCode := runCmdguard(t, "  \n", "check")
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr, "no command given")
}

func TestCheckColor(t *testing.T) {
	stdout, _, _ := runCmdguard(t, "", "--color", "always", "check", "su")
	assert.True(t, strings.HasPrefix(stdout, "\x1b[31mBLOCK\x1b[0m su"))
}

func TestCheckConsoleLogging(t *testing.T) {
	_, stderr, exitCode := runCmdguard(t, "", "--log-level", "debug", "check", "ls")
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stderr, "command checked")
}

func TestPath(t *testing.T) {
	stdout, _, exitCode := runCmdguard(t, "", "path", "src/main.go", "web/yarn.lock")
	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stdout, "ALLOW src/main.go\n")
	assert.Contains(t, stdout, "BLOCK web/yarn.lock\n")
	assert.Contains(t, stdout, "run `yarn install` to regenerate it")

	_, _, exitCode = runCmdguard(t, "", "path", "README.md")
	assert.Equal(t, 0, exitCode)

	_, _, exitCode = runCmdguard(t, "", "path")
	assert.Equal(t, 1, exitCode)
}

func TestExplain(t *testing.T) {
	stdout, _, exitCode := runCmdguard(t, "", "explain", "--", "env", "FOO=1", "sh", "-c", "'pip install x'")
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout, "command: env FOO=1 sh -c 'pip install x'\n")
	assert.Contains(t, stdout, "[2] FOO=1 pip install x")
	assert.Contains(t, stdout, "pip-install")
	assert.Contains(t, stdout, "result: BLOCK\n")
}

func TestRules(t *testing.T) {
	stdout, _, exitCode := runCmdguard(t, "", "rules")
	assert.Equal(t, 0, exitCode)
	for _, id := range []string{"privilege-escalation", "interactive-editor", "npm", "git-write", "nix-bare-path", "lock-file-redirect", "Gemfile.lock"} {
		assert.Contains(t, stdout, id)
	}
}

func TestInit(t *testing.T) {
	home := t.TempDir()
	var outBuf, errBuf bytes.Buffer
	t.Setenv("HOME", home)
	exitCode := run([]string{"init"}, strings.NewReader(""), &outBuf, &errBuf)
	require.Equal(t, 0, exitCode, errBuf.String())

	path := filepath.Join(home, ".config", "cmdguard", "config.yml")
	assert.Equal(t, "Created config: "+path+"\n", outBuf.String())

	outBuf.Reset()
	exitCode = run([]string{"--log-level", "debug", "check", "ls"}, strings.NewReader(""), &outBuf, &errBuf)
	assert.Equal(t, 0, exitCode)
}

func TestVersion(t *testing.T) {
	stdout, _, exitCode := runCmdguard(t, "", "version")
	assert.Equal(t, 0, exitCode)
	assert.True(t, strings.HasPrefix(stdout, "cmdguard version dev\n"))
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"log level", []string{"--log-level", "loud", "check", "ls"}, "invalid log level"},
		{"log format", []string{"--log-format", "xml", "rules"}, "invalid log format"},
		{"color", []string{"--color", "rainbow", "path", "x"}, "invalid color mode"},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"missing config", []string{"--config", "/nonexistent/cmdguard.yml", "rules"}, "cannot read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, exitCode := runCmdguard(t, "", tt.args...)
			assert.Equal(t, 1, exitCode)
			assert.Contains(t, stderr, tt.want)
		})
	}
}
