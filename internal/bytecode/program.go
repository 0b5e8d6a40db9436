package bytecode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Schema version for compiled program files. Bump when the instruction
// encoding or this container changes.
const programSchemaVersion uint16 = 2

// Function describes one compiled function. Entry is the absolute offset of
// its first instruction inside Code; the body occupies [Entry, End).
type Function struct {
	Name  string
	ID    uint64
	Entry uint64
	End   uint64
}

// Program is the immutable unit handed to the VM or the disassembler:
// a deduplicated read-only segment plus the compiled instruction stream,
// with function 0 being the top-level code.
type Program struct {
	Schema uint16
	Rom    []byte
	Code   []byte
	Funcs  []Function
}

// FunctionCode returns the byte sequence of one function's body.
func (p *Program) FunctionCode(f Function) []byte {
	return p.Code[f.Entry:f.End]
}

// FunctionByID looks a function up by its stable numeric id.
func (p *Program) FunctionByID(id uint64) (Function, bool) {
	if id >= uint64(len(p.Funcs)) {
		return Function{}, false
	}
	return p.Funcs[id], true
}

// Save serializes the program with msgpack, writing to a temp file and
// renaming so readers never observe a partial file.
func (p *Program) Save(path string) error {
	p.Schema = programSchemaVersion

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(p); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Load reads a program previously written by Save.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p Program
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if p.Schema != programSchemaVersion {
		return nil, errors.New("compiled program has an unsupported schema version; rebuild it")
	}
	return &p, nil
}
