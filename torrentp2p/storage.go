package torrentp2p

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage is a peer's shared folder. Every file lives directly under Root.
type Storage struct {
	Root string
}

// NewStorage creates root if needed.
func NewStorage(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Storage{Root: root}, nil
}

// path maps a file name to its location, rejecting anything that would
// escape Root.
func (s *Storage) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	return filepath.Join(s.Root, name), nil
}

// Open opens a stored file for reading.
func (s *Storage) Open(name string) (*os.File, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, nil
}

// ReadFile returns the contents of a stored file.
func (s *Storage) ReadFile(name string) ([]byte, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Partial is a file being written into storage. It only appears under its
// final name once Commit succeeds.
type Partial struct {
	*os.File
	dst  string
	done bool
}

// CreatePartial opens a temporary file that Commit will rename to name.
func (s *Storage) CreatePartial(name string) (*Partial, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.Root, "."+name+".part-*")
	if err != nil {
		return nil, err
	}
	return &Partial{File: tmp, dst: p}, nil
}

// Commit closes the file and moves it to its final name.
func (p *Partial) Commit() error {
	if p.done {
		return errors.New("partial file already closed")
	}
	p.done = true
	if err := p.File.Close(); err != nil {
		os.Remove(p.Name())
		return err
	}
	if err := os.Rename(p.Name(), p.dst); err != nil {
		os.Remove(p.Name())
		return err
	}
	return nil
}

// Discard drops the temporary file. It does nothing after Commit.
func (p *Partial) Discard() {
	if p.done {
		return
	}
	p.done = true
	p.File.Close()
	os.Remove(p.Name())
}

// Create writes r to name through a temporary file, so a failed write never
// leaves a partial file behind.
func (s *Storage) Create(name string, r io.Reader) (int64, error) {
	part, err := s.CreatePartial(name)
	if err != nil {
		return 0, err
	}
	defer part.Discard()

	n, err := io.Copy(part, r)
	if err != nil {
		return n, err
	}
	return n, part.Commit()
}

// WriteFile stores data under name.
func (s *Storage) WriteFile(name string, data []byte) error {
	_, err := s.Create(name, bytes.NewReader(data))
	return err
}

// Import copies the local file at src into the storage root and returns the
// stored name. A stored file with the same name is kept only if its contents
// match src; otherwise it is replaced.
func (s *Storage) Import(src string) (string, error) {
	name := filepath.Base(src)
	dst, err := s.path(name)
	if err != nil {
		return "", err
	}
	if sameFile(src, dst) {
		return name, nil
	}
	if same, err := sameContent(src, dst); err != nil {
		return "", err
	} else if same {
		return name, nil
	}

	in, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, src)
	}
	if err != nil {
		return "", err
	}
	defer in.Close()

	if _, err := s.Create(name, in); err != nil {
		return "", err
	}
	return name, nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// sameContent reports whether b exists and holds the same bytes as a.
func sameContent(a, b string) (bool, error) {
	bi, err := os.Stat(b)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ai, err := os.Stat(a)
	if errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: %s", ErrFileNotFound, a)
	}
	if err != nil {
		return false, err
	}
	if ai.Size() != bi.Size() || !bi.Mode().IsRegular() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, 32*1024)
	bufB := make([]byte, 32*1024)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}
