package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-runtime/wat"

	"github.com/caffeineduck/modhost/errors"
)

// Source supplies an extension's WebAssembly binary.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Module returns the WASM binary.
	Module() ([]byte, error)
}

type fileSource struct {
	path string
}

// FileSource reads a module from disk. Files ending in .wat are compiled
// from the text format; anything else is read as a binary.
func FileSource(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string {
	return s.path
}

func (s fileSource) Module() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
				Detail("read %s", s.path).
				Cause(err).
				Build()
		}
		return nil, errors.Load("read "+s.path, err)
	}
	if strings.EqualFold(filepath.Ext(s.path), ".wat") {
		return compileWAT(s.path, string(data))
	}
	return data, nil
}

type bytesSource struct {
	name string
	bin  []byte
}

// BytesSource wraps an in-memory binary.
func BytesSource(name string, bin []byte) Source {
	return bytesSource{name: name, bin: bin}
}

func (s bytesSource) Name() string {
	return s.name
}

func (s bytesSource) Module() ([]byte, error) {
	if len(s.bin) == 0 {
		return nil, errors.Load(s.name+": empty module", nil)
	}
	return s.bin, nil
}

type watSource struct {
	name string
	text string
}

// WATSource compiles a module from WebAssembly text.
func WATSource(name, text string) Source {
	return watSource{name: name, text: text}
}

func (s watSource) Name() string {
	return s.name
}

func (s watSource) Module() ([]byte, error) {
	return compileWAT(s.name, s.text)
}

func compileWAT(name, text string) ([]byte, error) {
	bin, err := wat.Compile(text)
	if err != nil {
		return nil, errors.Load("compile text format "+name, err)
	}
	return bin, nil
}

// digest keys the compiled module cache.
func digest(bin []byte) string {
	sum := sha256.Sum256(bin)
	return hex.EncodeToString(sum[:])
}
