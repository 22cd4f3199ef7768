package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	flag "github.com/spf13/pflag"
)

var ErrScriptRequired = errors.New("script path required (use - for stdin)")

// ExecCmd returns the exec command.
func ExecCmd(s *session) *Command {
	flags := flag.NewFlagSet("exec", flag.ContinueOnError)
	flags.String("export", "", "Export all files to `dir` when the script finishes")
	flags.Duration("wait", 0, "Wait up to `duration` for another export's directory lock")
	flags.Bool("explain", false, "Append the failure reason to -1 results")

	return &Command{
		Flags: flags,
		Usage: "exec <script|-> [flags]",
		Short: "Run a script of syscalls",
		Long: `Run a script of syscalls against a fresh descriptor table, one statement
per line, printing one result per statement. Use - to read the script from stdin.

` + statementHelp,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execExec(ctx, o, s, flags, args)
		},
	}
}

func execExec(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	if len(args) != 1 {
		return ErrScriptRequired
	}

	script, err := readScript(s, args[0])
	if err != nil {
		return err
	}

	interp, err := s.interpreter(ctx, o)
	if err != nil {
		return err
	}

	interp.Explain, _ = flags.GetBool("explain")
	interp.Wait, _ = flags.GetDuration("wait")

	scanner := bufio.NewScanner(bytes.NewReader(script))
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted at line %d: %w", lineNo, err)
		}

		err := interp.Exec(ctx, o, scanner.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	if dir, _ := flags.GetString("export"); dir != "" {
		return interp.Export(ctx, o, dir)
	}

	return nil
}

func readScript(s *session, path string) ([]byte, error) {
	if path == "-" {
		if s.in == nil {
			return nil, nil
		}

		data, err := io.ReadAll(s.in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.EffectiveCwd, path)
	}

	data, err := s.fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}

	return data, nil
}
