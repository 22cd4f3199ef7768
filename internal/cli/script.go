package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/fdsys/internal/fs"
	"github.com/calvinalkan/fdsys/internal/hostdir"
	"github.com/calvinalkan/fdsys/pkg/fdsys"
)

var (
	ErrUnknownStatement = errors.New("unknown statement")
	ErrBadArguments     = errors.New("bad arguments")
	ErrUnterminated     = errors.New("unterminated quoted string")
)

// nullToken is the literal that stands for an absent buffer.
const nullToken = "null"

// maxReadBuffer bounds the destination buffer a read statement allocates.
const maxReadBuffer = 16 << 20

// Interpreter runs script statements against one kernel. Each syscall
// statement prints its integer result on its own line, so a script's output
// lines up with its input.
type Interpreter struct {
	k       *fdsys.Kernel
	fsys    fs.FS
	workDir string

	// Explain appends the failure reason to -1 results.
	Explain bool

	// Wait is how long an export waits for another export's directory lock.
	Wait time.Duration
}

// NewInterpreter returns an interpreter for k. Relative export paths resolve
// against workDir.
func NewInterpreter(k *fdsys.Kernel, fsys fs.FS, workDir string) *Interpreter {
	return &Interpreter{k: k, fsys: fsys, workDir: workDir}
}

// statementNames lists the first words Exec understands, for help and completion.
var statementNames = []string{
	"creat", "create", "open", "write", "read", "close", "unlink",
	"ls", "fds", "sum", "export",
}

const statementHelp = `Statements:
  creat <name>                     Create or truncate a file, print its descriptor
  open <name>                      Open an existing file, print its descriptor
  write <fd> <text|null> <count>   Write up to count bytes of text, print bytes written
  read <fd> <bufsize|null> <count> Read into a bufsize buffer, print count and bytes
  close <fd>                       Close a descriptor, print 0 or -1
  unlink <name>                    Remove a file, print 0 or -1
  ls                               List files: name, size, open
  fds                              List descriptors: fd, name, refs, cursor, size
  sum <name>                       Print the BLAKE3 digest of a file
  export <dir>                     Write all files and a MANIFEST to dir

Text starting with " is a Go-quoted string. null is an absent buffer.
Lines starting with # are comments.`

// Exec runs one statement. Blank lines and comments do nothing. Syscall
// failures are printed as -1 and do not return an error; malformed statements
// and failing host operations do.
func (in *Interpreter) Exec(ctx context.Context, o *IO, line string) error {
	tokens, err := tokenize(line)
	if err != nil {
		return err
	}

	if len(tokens) == 0 {
		return nil
	}

	stmt, args := tokens[0], tokens[1:]
	if stmt.quoted {
		return fmt.Errorf("%w: %s", ErrUnknownStatement, strconv.Quote(stmt.text))
	}

	switch stmt.text {
	case "creat", "create":
		name, err := oneName(stmt.text, args)
		if err != nil {
			return err
		}

		fd, err := in.k.Create(name)
		in.result(o, fd, err)
	case "open":
		name, err := oneName(stmt.text, args)
		if err != nil {
			return err
		}

		fd, err := in.k.Open(name)
		in.result(o, fd, err)
	case "write":
		return in.write(o, args)
	case "read":
		return in.read(o, args)
	case "close":
		if len(args) != 1 {
			return fmt.Errorf("%w: usage: close <fd>", ErrBadArguments)
		}

		fd, err := intArg("fd", args[0])
		if err != nil {
			return err
		}

		in.result(o, 0, in.k.Close(fd))
	case "unlink":
		name, err := oneName(stmt.text, args)
		if err != nil {
			return err
		}

		in.result(o, 0, in.k.Unlink(name))
	case "ls":
		for _, f := range in.k.Files() {
			o.Printf("%s\t%d\t%s\n", strconv.Quote(f.Name), f.Size, openState(f.Open))
		}
	case "fds":
		for _, d := range in.k.Descriptors() {
			line := fmt.Sprintf("%d\t%s\trefs=%d\tcursor=%d\tsize=%d", d.FD, strconv.Quote(d.Name), d.Refs, d.Cursor, d.Size)
			if d.Unlinked {
				line += "\tunlinked"
			}

			o.Println(line)
		}
	case "sum":
		name, err := oneName(stmt.text, args)
		if err != nil {
			return err
		}

		data, err := in.k.Snapshot(name)
		if err != nil {
			return err
		}

		o.Printf("%s  %d  %s\n", hostdir.Digest(data), len(data), name)
	case "export":
		dir, err := oneName(stmt.text, args)
		if err != nil {
			return err
		}

		return in.Export(ctx, o, dir)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatement, stmt.text)
	}

	return nil
}

// Export writes the registry to dir and reports skipped names as warnings.
func (in *Interpreter) Export(ctx context.Context, o *IO, dir string) error {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(in.workDir, dir)
	}

	res, err := hostdir.Export(ctx, in.fsys, dir, in.k, in.Wait)
	if err != nil {
		return err
	}

	for _, s := range res.Skipped {
		o.Warn("not exported "+strconv.Quote(s.Name), s.Reason)
	}

	o.Printf("exported %d files to %s\n", res.Written, dir)

	return nil
}

func (in *Interpreter) write(o *IO, args []token) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: usage: write <fd> <text|null> <count>", ErrBadArguments)
	}

	fd, err := intArg("fd", args[0])
	if err != nil {
		return err
	}

	count, err := intArg("count", args[2])
	if err != nil {
		return err
	}

	var src []byte
	if !args[1].isNull() {
		src = append(make([]byte, 0, len(args[1].text)), args[1].text...)
	}

	n, err := in.k.Write(fd, src, count)
	in.result(o, n, err)

	return nil
}

func (in *Interpreter) read(o *IO, args []token) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: usage: read <fd> <bufsize|null> <count>", ErrBadArguments)
	}

	fd, err := intArg("fd", args[0])
	if err != nil {
		return err
	}

	count, err := intArg("count", args[2])
	if err != nil {
		return err
	}

	var dst []byte

	if !args[1].isNull() {
		size, err := intArg("bufsize", args[1])
		if err != nil {
			return err
		}

		if size < 0 {
			return fmt.Errorf("%w: bufsize must be >= 0, got %d", ErrBadArguments, size)
		}

		// Bytes past count are never touched, so only allocate what can be read.
		// A negative count still gets a non-nil buffer and fails in the kernel.
		alloc := 0
		if count >= 0 {
			alloc = min(size, count)
		}

		if alloc > maxReadBuffer {
			return fmt.Errorf("%w: read buffer of %d bytes exceeds limit of %d", ErrBadArguments, alloc, maxReadBuffer)
		}

		dst = make([]byte, alloc)
	}

	n, err := in.k.Read(fd, dst, count)
	if err != nil {
		in.result(o, n, err)

		return nil
	}

	o.Printf("%d %s\n", n, strconv.Quote(string(dst[:n])))

	return nil
}

func (in *Interpreter) result(o *IO, code int, err error) {
	if err == nil {
		o.Println(code)

		return
	}

	if in.Explain {
		o.Printf("%d\t# %v\n", fdsys.Failure, err)

		return
	}

	o.Println(fdsys.Failure)
}

func openState(open bool) string {
	if open {
		return "open"
	}

	return "closed"
}

func oneName(stmt string, args []token) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: %s <name>", ErrBadArguments, stmt)
	}

	return args[0].text, nil
}

func intArg(what string, t token) (int, error) {
	n, err := strconv.Atoi(t.text)
	if err != nil || t.quoted {
		return 0, fmt.Errorf("%w: %s must be an integer, got %s", ErrBadArguments, what, strconv.Quote(t.text))
	}

	return n, nil
}

type token struct {
	text   string
	quoted bool
}

func (t token) isNull() bool {
	return !t.quoted && t.text == nullToken
}

// tokenize splits line on whitespace. A token starting with " is a Go
// string literal and may contain spaces and escapes. Everything after an
// unquoted # is a comment.
func tokenize(line string) ([]token, error) {
	var tokens []token

	rest := strings.TrimSpace(line)
	for rest != "" {
		if rest[0] == '#' {
			break
		}

		if rest[0] == '"' {
			lit, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnterminated, rest)
			}

			text, err := strconv.Unquote(lit)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnterminated, lit)
			}

			after := rest[len(lit):]
			if after != "" && after[0] != ' ' && after[0] != '\t' {
				return nil, fmt.Errorf("%w: text after closing quote: %s", ErrBadArguments, rest)
			}

			tokens = append(tokens, token{text: text, quoted: true})
			rest = strings.TrimLeft(after, " \t")

			continue
		}

		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}

		tokens = append(tokens, token{text: rest[:end]})
		rest = strings.TrimLeft(rest[end:], " \t")
	}

	return tokens, nil
}
