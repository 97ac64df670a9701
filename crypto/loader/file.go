package loader

import (
	"encoding/hex"
	"io"
	"os"
	"strings"

	"golang.org/x/xerrors"
)

// fileLoader stores a key in a single line made of its kind and its
// hexadecimal encoding, separated by a colon.
//
// - implements loader.Loader
type fileLoader struct {
	path string
	kind Kind

	openFn     func(path string) (*os.File, error)
	openFileFn func(path string, flags int, perms os.FileMode) (*os.File, error)
}

// NewFileLoader returns a loader of the key of the kind stored at the path.
func NewFileLoader(path string, kind Kind) Loader {
	return fileLoader{
		path:       path,
		kind:       kind,
		openFn:     os.Open,
		openFileFn: os.OpenFile,
	}
}

// LoadOrCreate implements loader.Loader. A new file is readable by the owner
// only (0400) and an existing file is never truncated.
func (l fileLoader) LoadOrCreate(g Generator) ([]byte, error) {
	data, err := l.Load()
	if err == nil || !xerrors.Is(err, os.ErrNotExist) {
		return data, err
	}

	data, err = g.Generate()
	if err != nil {
		return nil, xerrors.Errorf("generator failed: %v", err)
	}

	file, err := l.openFileFn(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0400)
	if err != nil {
		return nil, xerrors.Errorf("while creating file: %v", err)
	}

	defer file.Close()

	_, err = file.WriteString(string(l.kind) + ":" + hex.EncodeToString(data) + "\n")
	if err != nil {
		return nil, xerrors.Errorf("while writing: %v", err)
	}

	return data, nil
}

// Load implements loader.Loader. The error wraps os.ErrNotExist when the file
// is missing.
func (l fileLoader) Load() ([]byte, error) {
	file, err := l.openFn(l.path)
	if err != nil {
		return nil, xerrors.Errorf("while opening file: %w", err)
	}

	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, xerrors.Errorf("while reading file: %v", err)
	}

	kind, value, found := strings.Cut(strings.TrimSpace(string(content)), ":")
	if !found {
		return nil, xerrors.New("malformed key file: missing kind")
	}

	if Kind(kind) != l.kind {
		return nil, xerrors.Errorf("%s holds a %s key instead of %s", l.path, kind, l.kind)
	}

	data, err := hex.DecodeString(value)
	if err != nil {
		return nil, xerrors.Errorf("malformed key file: %v", err)
	}

	return data, nil
}
