// Package terminal decides whether CLI output is colored and paints it.
package terminal

import (
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/adrianpk/cmdguard/internal/config"
)

// ciEnvVars contains common CI environment variables
var ciEnvVars = []string{
	"CI",
	"CONTINUOUS_INTEGRATION",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"BUILDKITE",
	"CIRCLECI",
	"JENKINS_URL",
	"TRAVIS",
	"TF_BUILD",
}

// Detector reads the environment and the output stream to choose colors.
type Detector struct {
	lookupEnv  func(string) (string, bool)
	isTerminal func(fd int) bool
}

// NewDetector returns a detector over the process environment.
func NewDetector() *Detector {
	return &Detector{
		lookupEnv:  os.LookupEnv,
		isTerminal: term.IsTerminal,
	}
}

// ColorEnabled reports whether output written to w should be colored under
// mode. In auto mode NO_COLOR, TERM=dumb and CI environments disable color,
// and w must be a terminal.
func (d *Detector) ColorEnabled(mode string, w io.Writer) bool {
	switch strings.ToLower(mode) {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}

	if _, ok := d.lookupEnv("NO_COLOR"); ok {
		return false
	}
	if v, _ := d.lookupEnv("TERM"); strings.EqualFold(strings.TrimSpace(v), "dumb") {
		return false
	}
	if d.isCI() {
		return false
	}

	f, ok := w.(interface{ Fd() uintptr })
	return ok && d.isTerminal(int(f.Fd()))
}

func (d *Detector) isCI() bool {
	for _, name := range ciEnvVars {
		value, ok := d.lookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if name == "CI" {
			return isTruthy(value)
		}
		return true
	}
	return false
}

// isTruthy treats CI=false, CI=0 and CI=no as unset.
func isTruthy(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	return lower != "false" && lower != "0" && lower != "no"
}

// Color is an ANSI SGR code.
type Color int

const (
	Bold   Color = 1
	Faint  Color = 2
	Red    Color = 31
	Green  Color = 32
	Yellow Color = 33
)

// Painter wraps text in color codes when enabled.
type Painter struct {
	enabled bool
}

// NewPainter returns a painter. A disabled painter returns text unchanged.
func NewPainter(enabled bool) Painter {
	return Painter{enabled: enabled}
}

// Enabled reports whether the painter emits color codes.
func (p Painter) Enabled() bool {
	return p.enabled
}

// Paint returns s in color c.
func (p Painter) Paint(c Color, s string) string {
	if !p.enabled || s == "" {
		return s
	}
	return "\x1b[" + strconv.Itoa(int(c)) + "m" + s + "\x1b[0m"
}
