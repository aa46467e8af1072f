package cli

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/adrianpk/cmdguard/internal/parser"
	"github.com/adrianpk/cmdguard/internal/policy"
	"github.com/adrianpk/cmdguard/internal/terminal"
)

// Printer writes decisions for people reading a terminal.
type Printer struct {
	w     io.Writer
	paint terminal.Painter
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, paint terminal.Painter) *Printer {
	return &Printer{w: w, paint: paint}
}

// labelWidth fits the longest verdict name.
const labelWidth = 5

func label(v policy.Verdict) string {
	return fmt.Sprintf("%-*s", labelWidth, strings.ToUpper(v.String()))
}

func (p *Printer) verdict(v policy.Verdict) string {
	text := label(v)
	switch v {
	case policy.Block:
		return p.paint.Paint(terminal.Red, text)
	case policy.Warn:
		return p.paint.Paint(terminal.Yellow, text)
	}
	return p.paint.Paint(terminal.Green, text)
}

// Decision prints the verdict for subject and, when there is one, the reason.
func (p *Printer) Decision(subject string, d policy.Decision) {
	fmt.Fprintf(p.w, "%s %s\n", p.verdict(d.Verdict), subject)
	if d.Reason != "" {
		fmt.Fprintf(p.w, "      %s\n", d.Reason)
	}
}

// Evaluation prints every sub-command of a classified command, indented by
// nesting depth, followed by the structural problems and the final decision.
func (p *Printer) Evaluation(command string, eval policy.Evaluation) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint.Paint(terminal.Bold, "command:"), command)

	for _, f := range eval.Findings {
		indent := strings.Repeat("  ", f.Command.Depth)
		fmt.Fprintf(p.w, "  %s %s%s %s\n",
			p.verdict(f.Decision.Verdict),
			indent,
			p.paint.Paint(terminal.Faint, "["+strconv.Itoa(f.Command.Depth)+"]"),
			f.Command.String())
		if f.Decision.Rule != "" {
			fmt.Fprintf(p.w, "        %s%s: %s\n", indent, f.Decision.Rule, f.Decision.Reason)
		}
	}

	if eval.TooDeep {
		fmt.Fprintf(p.w, "  nesting exceeds %d levels\n", parser.MaxDepth)
	}
	for _, issue := range eval.Issues {
		fmt.Fprintf(p.w, "  issue: %s\n", issue)
	}

	fmt.Fprintf(p.w, "%s %s\n", p.paint.Paint(terminal.Bold, "result:"), p.verdict(eval.Decision.Verdict))
	if eval.Decision.Reason != "" {
		fmt.Fprintf(p.w, "      %s\n", eval.Decision.Reason)
	}
}

// Rules prints the command rules in evaluation order, then the path rules.
func (p *Printer) Rules(rules []policy.Rule, paths []policy.PathRule) error {
	rows := make([][]string, 0, len(rules))
	verdicts := make([]policy.Verdict, 0, len(rules))
	for i, r := range rules {
		rows = append(rows, []string{strconv.Itoa(i + 1), r.ID, r.Category.String(), label(r.Verdict), r.Message})
		verdicts = append(verdicts, r.Verdict)
	}
	if err := p.table([]string{"#", "RULE", "CATEGORY", "VERDICT", "MESSAGE"}, 3, rows, verdicts); err != nil {
		return err
	}

	fmt.Fprintln(p.w)
	rows, verdicts = rows[:0], verdicts[:0]
	for _, r := range paths {
		rows = append(rows, []string{r.Pattern, label(policy.Block), r.Advice})
		verdicts = append(verdicts, policy.Block)
	}
	return p.table([]string{"PATH", "VERDICT", "REGENERATE WITH"}, 1, rows, verdicts)
}

// table aligns rows under header, then paints the verdict labels found in
// column col. Color codes are added after alignment so they take no width.
func (p *Printer) table(header []string, col int, rows [][]string, verdicts []policy.Verdict) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	lines := strings.SplitAfter(buf.String(), "\n")
	at := strings.Index(lines[0], header[col])
	for i, line := range lines {
		if i > 0 && i <= len(verdicts) && at >= 0 && at+labelWidth <= len(line) {
			line = line[:at] + p.verdict(verdicts[i-1]) + line[at+labelWidth:]
		}
		if _, err := io.WriteString(p.w, line); err != nil {
			return err
		}
	}
	return nil
}
