package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/calvinalkan/fdsys/internal/config"
	"github.com/calvinalkan/fdsys/internal/fs"
	"github.com/calvinalkan/fdsys/internal/hostdir"
	"github.com/calvinalkan/fdsys/pkg/fdsys"
)

// session carries what exec and shell share: resolved config, logger, host
// filesystem and stdin.
type session struct {
	cfg  *config.Config
	log  *slog.Logger
	fsys fs.FS
	in   io.Reader
}

// interpreter builds a kernel from the config, seeds it from seed_dir if
// set, and returns an interpreter over it. Seed files the kernel rejects
// become warnings.
func (s *session) interpreter(ctx context.Context, o *IO) (*Interpreter, error) {
	k, err := fdsys.New(s.cfg.KernelOptions(s.log))
	if err != nil {
		return nil, err
	}

	if s.cfg.SeedDirAbs != "" {
		res, err := hostdir.Import(ctx, s.fsys, s.cfg.SeedDirAbs, k)
		if err != nil {
			return nil, fmt.Errorf("seeding: %w", err)
		}

		for _, skip := range res.Skipped {
			o.Warn("not seeded "+strconv.Quote(skip.Name), skip.Reason)
		}

		s.log.Debug("seeded", "dir", s.cfg.SeedDirAbs, "files", res.Loaded)
	}

	return NewInterpreter(k, s.fsys, s.cfg.EffectiveCwd), nil
}
