package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/adrianpk/cmdguard/internal/config"
	"github.com/adrianpk/cmdguard/internal/policy"
	"github.com/adrianpk/cmdguard/internal/terminal"
)

func TestDefaultConfigIsValid(t *testing.T) {
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(defaultConfig), &cfg))

	merged := config.Default()
	assert.Equal(t, merged.Log.Level, cfg.Log.Level)
	assert.Equal(t, merged.Log.Format, cfg.Log.Format)
	assert.Equal(t, merged.Output.Color, cfg.Output.Color)
	assert.NoError(t, cfg.Validate())
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yml")

	created, err := WriteDefaultConfig(path)
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, string(data))

	require.NoError(t, os.WriteFile(path, []byte("version: 2\n"), 0644))
	created, err = WriteDefaultConfig(path)
	require.NoError(t, err)
	assert.False(t, created)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 2\n", string(data))
}

func TestRunInitGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out bytes.Buffer
	require.NoError(t, RunInit(&out, false))
	path := filepath.Join(home, ".config", "cmdguard", "config.yml")
	assert.Equal(t, "Created config: "+path+"\n", out.String())
	assert.FileExists(t, path)

	out.Reset()
	require.NoError(t, RunInit(&out, false))
	assert.Equal(t, "Config already exists: "+path+"\n", out.String())
}

func TestPrinterDecision(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, terminal.NewPainter(false))

	p.Decision("ls -la", policy.Decision{Verdict: policy.Allow})
	p.Decision("sudo ls", policy.Decision{Verdict: policy.Block, Reason: "sudo: privilege escalation is not allowed"})

	assert.Equal(t, "ALLOW ls -la\n"+
		"BLOCK sudo ls\n"+
		"      sudo: privilege escalation is not allowed\n", out.String())
}

func TestPrinterDecisionColored(t *testing.T) {
	var out bytes.Buffer
	NewPrinter(&out, terminal.NewPainter(true)).Decision("x", policy.Decision{Verdict: policy.Warn})
	assert.Equal(t, "\x1b[33mWARN \x1b[0m x\n", out.String())
}

func TestPrinterEvaluation(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, terminal.NewPainter(false))
	p.Evaluation("ls && bash -c 'sudo id'", policy.DefaultEngine().InspectCommand("ls && bash -c 'sudo id'"))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "command: ls && bash -c 'sudo id'", lines[0])
	assert.Equal(t, "  ALLOW [0] ls", lines[1])
	assert.Contains(t, out.String(), "BLOCK   [1] sudo id\n")
	assert.Contains(t, out.String(), "privilege-escalation: sudo: privilege escalation is not allowed")
	assert.Contains(t, out.String(), "result: BLOCK\n")
}

func TestPrinterEvaluationIssues(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, terminal.NewPainter(false))
	p.Evaluation(`echo "open`, policy.DefaultEngine().InspectCommand(`echo "open`))

	assert.Contains(t, out.String(), "  issue: unterminated double quote\n")
	assert.Contains(t, out.String(), "could not verify command safety")
}

func TestPrinterEvaluationTooDeep(t *testing.T) {
	command := strings.Repeat("echo $(", 10) + "ls" + strings.Repeat(")", 10)
	var out bytes.Buffer
	NewPrinter(&out, terminal.NewPainter(false)).Evaluation(command, policy.DefaultEngine().InspectCommand(command))

	assert.Contains(t, out.String(), "nesting exceeds 8 levels")
	assert.Contains(t, out.String(), "command too deeply nested to verify")
}

func TestPrinterRules(t *testing.T) {
	var out bytes.Buffer
	engine := policy.DefaultEngine()
	require.NoError(t, NewPrinter(&out, terminal.NewPainter(false)).Rules(engine.Rules(), engine.PathRules()))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "#"))
	assert.Contains(t, text, "privilege-escalation")
	assert.Contains(t, text, "git-read-only")
	assert.Contains(t, text, "Cargo.lock")
	assert.Contains(t, text, "cargo update")
	assert.Less(t, strings.Index(text, "privilege-escalation"), strings.Index(text, "nix-bare-path"))
}

var ansiCode = regexp.MustCompile("\x1b\\[[0-9]+m")

func TestPrinterRulesColorKeepsAlignment(t *testing.T) {
	engine := policy.DefaultEngine()
	var plain, colored bytes.Buffer
	require.NoError(t, NewPrinter(&plain, terminal.NewPainter(false)).Rules(engine.Rules(), engine.PathRules()))
	require.NoError(t, NewPrinter(&colored, terminal.NewPainter(true)).Rules(engine.Rules(), engine.PathRules()))

	assert.Contains(t, colored.String(), "\x1b[31mBLOCK\x1b[0m")
	assert.Contains(t, colored.String(), "\x1b[32mALLOW\x1b[0m")
	assert.Equal(t, plain.String(), ansiCode.ReplaceAllString(colored.String(), ""))

	lines := strings.Split(plain.String(), "\n")
	at := strings.Index(lines[0], "VERDICT")
	require.Positive(t, at)
	assert.Equal(t, "BLOCK", lines[1][at:at+5])
}
