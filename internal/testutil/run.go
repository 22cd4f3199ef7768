package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/fdsys/pkg/fdsys"
	"github.com/calvinalkan/fdsys/pkg/fdsys/model"
)

// RunConfig configures a model comparison run.
type RunConfig struct {
	// MaxOps is the maximum number of operations to execute.
	MaxOps int

	// CompareStateEveryN runs full state comparison every N operations.
	// Set to 0 to disable periodic checks (only check at end).
	CompareStateEveryN int
}

// DefaultRunConfig returns a balanced configuration.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxOps:             400,
		CompareStateEveryN: 1,
	}
}

// RunAgainstModel applies generated operations to a fresh [fdsys.Kernel]
// and a fresh [model.Kernel] built from opts, failing tb on the first
// diverging return code, read result or state snapshot.
func RunAgainstModel(tb testing.TB, opts fdsys.Options, cfg RunConfig, gen *OpGenerator) {
	tb.Helper()

	if cfg.MaxOps <= 0 {
		tb.Fatalf("RunAgainstModel requires MaxOps > 0")
	}

	k, err := fdsys.New(opts)
	if err != nil {
		tb.Fatalf("fdsys.New: %v", err)
	}

	sys := fdsys.NewSyscalls(k)
	mdl := model.New(opts)
	history := make([]string, 0, cfg.MaxOps)

	for opIndex := 1; opIndex <= cfg.MaxOps && gen.HasMore(); opIndex++ {
		op := gen.NextOp()
		history = append(history, op.String())

		if msg := Apply(sys, mdl, op).Mismatch(); msg != "" {
			tb.Fatalf("op %d %s %s\n%s", opIndex, op, msg, FormatOps(history))
		}

		if cfg.CompareStateEveryN > 0 && opIndex%cfg.CompareStateEveryN == 0 {
			if err := CompareState(k, mdl); err != nil {
				tb.Fatalf("after op %d %s: %v\n%s", opIndex, op, err, FormatOps(history))
			}
		}
	}

	if err := CompareState(k, mdl); err != nil {
		tb.Fatalf("final state: %v\n%s", err, FormatOps(history))
	}
}

// CompareState diffs the registry and descriptor table of k against mdl.
func CompareState(k *fdsys.Kernel, mdl *model.Kernel) error {
	if diff := cmp.Diff(mdl.FileInfos(), k.Files()); diff != "" {
		return fmt.Errorf("files mismatch (-model +real):\n%s", diff)
	}

	if diff := cmp.Diff(mdl.DescriptorInfos(), k.Descriptors()); diff != "" {
		return fmt.Errorf("descriptors mismatch (-model +real):\n%s", diff)
	}

	return nil
}

// FormatOps renders an operation history, one numbered op per line.
func FormatOps(history []string) string {
	var b strings.Builder

	b.WriteString("history:\n")

	for i, op := range history {
		fmt.Fprintf(&b, "  %3d %s\n", i+1, op)
	}

	return b.String()
}
