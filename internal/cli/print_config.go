package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/fdsys/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("capacity=" + strconv.Itoa(cfg.Capacity))
	io.Println("reserved=" + strconv.Itoa(cfg.Reserved))
	io.Println("max_name_length=" + strconv.Itoa(cfg.MaxNameLength))
	io.Println("log_level=" + cfg.LogLevel)

	if cfg.SeedDirAbs != "" {
		io.Println("seed_dir=" + cfg.SeedDirAbs)
	}

	if cfg.HistoryFileAbs != "" {
		io.Println("history_file=" + cfg.HistoryFileAbs)
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
