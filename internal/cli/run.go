package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/fdsys/internal/config"
	"github.com/calvinalkan/fdsys/internal/fs"
)

var ErrUnknownCommand = errors.New("unknown command")

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. The first signal received cancels the running command;
// scripts stop between statements and the shell exits at the next prompt.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("fdsh", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	capacity := globals.Int("capacity", 0, "Override the descriptor table capacity")
	seedDir := globals.String("seed", "", "Import files from `dir` before running")
	debug := globals.Bool("debug", false, "Log every operation to stderr")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, nil)

		return 1
	}

	rest := globals.Args()

	if *help || len(rest) == 0 {
		printUsage(out, globals, nil)

		return 0
	}

	cfg, err := config.LoadConfig(config.LoadConfigInput{
		WorkDirOverride:  *workDir,
		ConfigPath:       *configPath,
		CapacityOverride: *capacity,
		SeedDirOverride:  *seedDir,
		Debug:            *debug,
		Env:              env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()}))

	s := &session{
		cfg:  &cfg,
		log:  logger,
		fsys: fs.NewReal(),
		in:   in,
	}

	commands := []*Command{
		ExecCmd(s),
		ShellCmd(s),
		PrintConfigCmd(&cfg),
	}

	name := rest[0]

	var cmd *Command

	for _, c := range commands {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		_, _ = fmt.Fprintf(errOut, "error: %v: %s\n", ErrUnknownCommand, name)
		printUsage(errOut, globals, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				logger.Debug("signal received", "signal", sig.String())
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	fprintln(w, `fdsh - in-memory file descriptor table

Usage: fdsh [options] <command> [args]

Options:`)

	var buf strings.Builder
	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})
	_, _ = fmt.Fprint(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	if commands == nil {
		commands = []*Command{ExecCmd(nil), ShellCmd(nil), PrintConfigCmd(nil)}
	}

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}
}
