package testutil

import (
	"fmt"

	"github.com/calvinalkan/fdsys/pkg/fdsys"
	"github.com/calvinalkan/fdsys/pkg/fdsys/model"
)

// OpKind identifies a syscall.
type OpKind int

const (
	OpCreat OpKind = iota
	OpOpen
	OpRead
	OpWrite
	OpClose
	OpUnlink
)

func (k OpKind) String() string {
	switch k {
	case OpCreat:
		return "creat"
	case OpOpen:
		return "open"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpClose:
		return "close"
	case OpUnlink:
		return "unlink"
	}

	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one generated syscall. Buf is nil for a null buffer. For reads only
// len(Buf) matters: each implementation reads into its own buffer of that
// size.
type Op struct {
	Kind  OpKind
	Name  string
	FD    int
	Buf   []byte
	Count int
}

func (o Op) String() string {
	switch o.Kind {
	case OpCreat, OpOpen, OpUnlink:
		return fmt.Sprintf("%s(%q)", o.Kind, o.Name)
	case OpClose:
		return fmt.Sprintf("close(%d)", o.FD)
	case OpWrite:
		if o.Buf == nil {
			return fmt.Sprintf("write(%d, nil, %d)", o.FD, o.Count)
		}

		return fmt.Sprintf("write(%d, %q, %d)", o.FD, o.Buf, o.Count)
	case OpRead:
		if o.Buf == nil {
			return fmt.Sprintf("read(%d, nil, %d)", o.FD, o.Count)
		}

		return fmt.Sprintf("read(%d, [%d]byte, %d)", o.FD, len(o.Buf), o.Count)
	}

	return o.Kind.String()
}

// Outcome is what both implementations returned for one Op.
type Outcome struct {
	Real, Model         int
	RealRead, ModelRead []byte
}

// Mismatch describes how the two sides disagree, or returns "" if they agree.
func (oc Outcome) Mismatch() string {
	if oc.Real != oc.Model {
		return fmt.Sprintf("returned %d, model %d", oc.Real, oc.Model)
	}

	if string(oc.RealRead) != string(oc.ModelRead) {
		return fmt.Sprintf("read %q, model %q", oc.RealRead, oc.ModelRead)
	}

	return ""
}

// Apply runs o against the real syscalls and the model.
func Apply(sys *fdsys.Syscalls, mdl *model.Kernel, o Op) Outcome {
	switch o.Kind {
	case OpCreat:
		return Outcome{Real: sys.Creat(o.Name), Model: mdl.Creat(o.Name)}
	case OpOpen:
		return Outcome{Real: sys.Open(o.Name), Model: mdl.Open(o.Name)}
	case OpClose:
		return Outcome{Real: sys.Close(o.FD), Model: mdl.Close(o.FD)}
	case OpUnlink:
		return Outcome{Real: sys.Unlink(o.Name), Model: mdl.Unlink(o.Name)}
	case OpWrite:
		return Outcome{Real: sys.Write(o.FD, o.Buf, o.Count), Model: mdl.Write(o.FD, o.Buf, o.Count)}
	case OpRead:
		var realBuf, modelBuf []byte
		if o.Buf != nil {
			realBuf = make([]byte, len(o.Buf))
			modelBuf = make([]byte, len(o.Buf))
		}

		return Outcome{
			Real:      sys.Read(o.FD, realBuf, o.Count),
			Model:     mdl.Read(o.FD, modelBuf, o.Count),
			RealRead:  realBuf,
			ModelRead: modelBuf,
		}
	}

	panic("testutil: unknown op " + o.Kind.String())
}
