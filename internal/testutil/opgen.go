package testutil

import "github.com/calvinalkan/fdsys/pkg/fdsys"

// OpGenConfig configures the operation generator. Kind rates are
// percentages and should add up to 100; anything left over becomes unlink.
type OpGenConfig struct {
	// CreatRate is the percentage of ops that call creat.
	CreatRate int

	// OpenRate is the percentage of ops that call open.
	OpenRate int

	// ReadRate is the percentage of ops that call read.
	ReadRate int

	// WriteRate is the percentage of ops that call write.
	WriteRate int

	// CloseRate is the percentage of ops that call close.
	CloseRate int

	// InvalidFDRate is the percentage of descriptors drawn from outside the
	// table range.
	InvalidFDRate int

	// InvalidNameRate is the percentage of names that are empty or too long.
	InvalidNameRate int

	// NullBufferRate is the percentage of reads and writes with a nil buffer.
	NullBufferRate int

	// NegativeCountRate is the percentage of reads and writes with count < 0.
	NegativeCountRate int

	// Names is the pool valid names are drawn from. A small pool makes
	// dedup, truncation and unlink-while-open collide often.
	Names []string

	// MaxPayload bounds buffer sizes and counts.
	MaxPayload int
}

// DefaultOpGenConfig returns a balanced configuration.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		CreatRate:         20,
		OpenRate:          15,
		ReadRate:          20,
		WriteRate:         20,
		CloseRate:         17,
		InvalidFDRate:     10,
		InvalidNameRate:   5,
		NullBufferRate:    8,
		NegativeCountRate: 5,
		Names:             []string{"a", "b", "c", "d", "e", "f"},
		MaxPayload:        24,
	}
}

// OpGenerator generates deterministic operations from a byte stream.
type OpGenerator struct {
	stream *ByteStream
	config OpGenConfig
	opts   fdsys.Options
}

// NewOpGenerator creates a generator for a kernel built with opts.
func NewOpGenerator(fuzzBytes []byte, opts fdsys.Options, cfg *OpGenConfig) *OpGenerator {
	return &OpGenerator{
		stream: NewByteStream(fuzzBytes),
		config: *cfg,
		opts:   opts,
	}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	choice := g.stream.NextInt(100)

	cumulative := 0

	cumulative += g.config.CreatRate
	if choice < cumulative {
		return Op{Kind: OpCreat, Name: g.name()}
	}

	cumulative += g.config.OpenRate
	if choice < cumulative {
		return Op{Kind: OpOpen, Name: g.name()}
	}

	cumulative += g.config.ReadRate
	if choice < cumulative {
		return g.genIO(OpRead)
	}

	cumulative += g.config.WriteRate
	if choice < cumulative {
		return g.genIO(OpWrite)
	}

	cumulative += g.config.CloseRate
	if choice < cumulative {
		return Op{Kind: OpClose, FD: g.fd()}
	}

	return Op{Kind: OpUnlink, Name: g.name()}
}

func (g *OpGenerator) genIO(kind OpKind) Op {
	op := Op{Kind: kind, FD: g.fd()}

	if !g.stream.Percent(g.config.NullBufferRate) {
		op.Buf = g.stream.NextPayload(g.stream.NextInt(g.config.MaxPayload + 1))
	}

	if g.stream.Percent(g.config.NegativeCountRate) {
		op.Count = -g.stream.NextRange(1, 3)
	} else {
		op.Count = g.stream.NextInt(g.config.MaxPayload + 1)
	}

	return op
}

func (g *OpGenerator) name() string {
	if g.stream.Percent(g.config.InvalidNameRate) {
		if g.stream.NextBool() {
			return ""
		}

		return string(g.stream.NextPayload(g.opts.MaxNameLength + 1))
	}

	if len(g.config.Names) == 0 {
		return "f"
	}

	return g.config.Names[g.stream.NextInt(len(g.config.Names))]
}

// fd returns a descriptor inside the table range, or just outside it at
// InvalidFDRate.
func (g *OpGenerator) fd() int {
	first := g.opts.Reserved
	last := g.opts.Reserved + g.opts.Capacity - 1

	if g.stream.Percent(g.config.InvalidFDRate) {
		candidates := []int{-1, first - 1, last + 1, last + 100}

		return candidates[g.stream.NextInt(len(candidates))]
	}

	return g.stream.NextRange(first, last)
}
