package cli

import (
	"fmt"
	"io"
)

// IO handles command output and collects warnings.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []string
	flushed  int
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records a warning.
//
// Parameters:
//   - issue: what went wrong
//   - detail: why, or what to do about it
//
// Warnings are printed to stderr before the first stdout write after they
// are recorded and again by [IO.Finish], so they survive head/tail on
// either stream. Any warnings make Finish return exit code 1.
func (o *IO) Warn(issue string, detail string) {
	o.warnings = append(o.warnings, fmt.Sprintf("%s: %s", issue, detail))
}

// Println writes to stdout, flushing pending warnings to stderr first.
func (o *IO) Println(a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout, flushing pending warnings to
// stderr first.
func (o *IO) Printf(format string, a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Out returns the stdout writer.
func (o *IO) Out() io.Writer {
	return o.out
}

// ErrOut returns the stderr writer.
func (o *IO) ErrOut() io.Writer {
	return o.errOut
}

// Finish prints warnings to stderr and returns exit code.
// Returns 1 if any warnings, 0 otherwise.
func (o *IO) Finish() int {
	// If no output happened but we have warnings, print them at "start" position
	o.flushWarningsStart()

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	for _, w := range o.warnings[o.flushed:] {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	o.flushed = len(o.warnings)
}
