package suite

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const ruleWidth = 60

// Console writes the human-readable run transcript.
type Console struct {
	w io.Writer

	ok   *color.Color
	bad  *color.Color
	head *color.Color
}

// NewConsole returns a Console writing to w. Colour is used only when w is
// a terminal and NO_COLOR is unset.
func NewConsole(w io.Writer) *Console {
	c := &Console{
		w:    w,
		ok:   color.New(color.FgGreen),
		bad:  color.New(color.FgRed),
		head: color.New(color.Bold),
	}
	c.SetColor(wantColor(w))
	return c
}

// SetColor forces colour on or off.
func (c *Console) SetColor(on bool) {
	for _, col := range []*color.Color{c.ok, c.bad, c.head} {
		if on {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
}

func wantColor(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Banner prints the run title followed by a rule.
func (c *Console) Banner(title string) {
	fmt.Fprintln(c.w, c.head.Sprint("🧪 "+title))
	fmt.Fprintln(c.w, strings.Repeat("=", ruleWidth))
	fmt.Fprintln(c.w)
}

// StepHeader announces a step and the literal command about to run.
func (c *Console) StepHeader(desc string, argv []string) {
	fmt.Fprintln(c.w, c.head.Sprint("🔧 "+desc))
	fmt.Fprintf(c.w, "Command: %s\n", strings.Join(argv, " "))
	fmt.Fprintln(c.w, strings.Repeat("-", ruleWidth))
}

// Success reports a step that exited zero, followed by its stdout.
func (c *Console) Success(desc, stdout string) {
	fmt.Fprintln(c.w, c.ok.Sprint("✅ Success: "+desc))
	if stdout != "" {
		fmt.Fprint(c.w, ensureNewline(stdout))
	}
	fmt.Fprintln(c.w)
}

// Failure reports a step that exited non-zero, followed by its stderr.
func (c *Console) Failure(desc, stderr string) {
	fmt.Fprintln(c.w, c.bad.Sprint("❌ Failed: "+desc))
	if stderr != "" {
		fmt.Fprint(c.w, "STDERR: "+ensureNewline(stderr))
	}
	fmt.Fprintln(c.w)
}

// SpawnError reports a step whose command could not be run.
func (c *Console) SpawnError(desc string, err error) {
	fmt.Fprintln(c.w, c.bad.Sprintf("❌ Error running %s: %v", desc, err))
	fmt.Fprintln(c.w)
}

// Summary prints the final verdict. failed lists the labels of steps
// that did not pass.
func (c *Console) Summary(passed bool, total int, failed []string) {
	fmt.Fprintln(c.w, strings.Repeat("=", ruleWidth))
	if passed {
		fmt.Fprintln(c.w, c.ok.Sprintf("✅ All tests passed! (%d/%d steps)", total, total))
		return
	}
	fmt.Fprintln(c.w, c.bad.Sprint("❌ Some tests failed. Please check the output above."))
	for _, name := range failed {
		fmt.Fprintf(c.w, "  - %s\n", name)
	}
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
