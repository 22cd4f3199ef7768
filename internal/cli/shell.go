package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

const shellPrompt = "fdsh> "

// ShellCmd returns the shell command.
func ShellCmd(s *session) *Command {
	flags := flag.NewFlagSet("shell", flag.ContinueOnError)
	flags.String("export", "", "Export all files to `dir` when the shell exits")
	flags.Duration("wait", 0, "Wait up to `duration` for another export's directory lock")

	return &Command{
		Flags: flags,
		Usage: "shell [flags]",
		Short: "Interactive syscall shell",
		Long: `Read statements interactively. Failed syscalls print -1 with the reason;
malformed statements print an error and the shell keeps going. Type help for
the statement list and exit (or Ctrl-D) to leave.

` + statementHelp,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execShell(ctx, o, s, flags, args)
		},
	}
}

// lineReader is the prompt source: liner on a terminal, a plain scanner
// otherwise.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

func execShell(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: shell takes no arguments", ErrBadArguments)
	}

	interp, err := s.interpreter(ctx, o)
	if err != nil {
		return err
	}

	interp.Explain = true
	interp.Wait, _ = flags.GetDuration("wait")

	lines := s.newLineReader(o)
	defer lines.Close()

	err = shellLoop(ctx, o, interp, lines)
	if err != nil {
		return err
	}

	if dir, _ := flags.GetString("export"); dir != "" {
		return interp.Export(ctx, o, dir)
	}

	return nil
}

func shellLoop(ctx context.Context, o *IO, interp *Interpreter, lines lineReader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := lines.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lines.AppendHistory(line)

		switch line {
		case "exit", "quit", "q":
			return nil
		case "help", "?":
			o.Println(statementHelp)

			continue
		}

		err = interp.Exec(ctx, o, line)
		if err != nil {
			o.ErrPrintln("error:", err)
		}
	}
}

func (s *session) newLineReader(o *IO) lineReader {
	if f, ok := s.in.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		return newTerminalReader(o, s.cfg.HistoryFileAbs)
	}

	return &scanReader{scanner: bufio.NewScanner(orEmpty(s.in))}
}

// terminalReader wraps liner and persists history to path on Close.
type terminalReader struct {
	state *liner.State
	path  string
}

func newTerminalReader(o *IO, historyPath string) *terminalReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(completeStatement)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	o.Println("fdsh - type 'help' for statements, 'exit' to leave")

	return &terminalReader{state: state, path: historyPath}
}

func (r *terminalReader) Prompt(prompt string) (string, error) {
	return r.state.Prompt(prompt)
}

func (r *terminalReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

func (r *terminalReader) Close() error {
	if r.path != "" {
		if f, err := os.Create(r.path); err == nil {
			_, _ = r.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return r.state.Close()
}

// scanReader reads lines without prompting, for piped input.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return r.scanner.Text(), nil
}

func (r *scanReader) AppendHistory(string) {}

func (r *scanReader) Close() error { return nil }

func completeStatement(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, name := range slices.Concat(statementNames, []string{"help", "exit", "quit"}) {
		if strings.HasPrefix(name, lower) {
			completions = append(completions, name)
		}
	}

	return completions
}

func orEmpty(r io.Reader) io.Reader {
	if r == nil {
		return strings.NewReader("")
	}

	return r
}
