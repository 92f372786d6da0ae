package torrentfile

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
)

// ErrPieceMismatch is returned when downloaded data does not match the
// descriptor's piece hashes.
var ErrPieceMismatch = errors.New("piece hash mismatch")

// VerifyPiece checks one piece against its recorded hash.
func (t *Torrent) VerifyPiece(i int, piece []byte) error {
	if i < 0 || i >= len(t.PieceHashes) {
		return fmt.Errorf("%w: piece %d out of range", ErrPieceMismatch, i)
	}
	if len(piece) != t.PieceSize(i) {
		return fmt.Errorf("%w: piece %d has %d bytes, want %d", ErrPieceMismatch, i, len(piece), t.PieceSize(i))
	}
	if sha1.Sum(piece) != t.PieceHashes[i] {
		return fmt.Errorf("%w: piece %d", ErrPieceMismatch, i)
	}
	return nil
}

// VerifyPieces checks a complete file against every piece hash.
func (t *Torrent) VerifyPieces(data []byte) error {
	if uint64(len(data)) != t.Length {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPieceMismatch, len(data), t.Length)
	}
	return t.VerifyReader(bytes.NewReader(data))
}

// VerifyReader hashes r piece by piece without buffering whole pieces. r must
// hold exactly Length bytes.
func (t *Torrent) VerifyReader(r io.Reader) error {
	h := sha1.New()
	var sum [20]byte
	for i := range t.PieceHashes {
		h.Reset()
		size := int64(t.PieceSize(i))
		n, err := io.CopyN(h, r, size)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: piece %d has %d bytes, want %d", ErrPieceMismatch, i, n, size)
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(h.Sum(sum[:0]), t.PieceHashes[i][:]) {
			return fmt.Errorf("%w: piece %d", ErrPieceMismatch, i)
		}
	}
	if n, _ := io.CopyN(io.Discard, r, 1); n != 0 {
		return fmt.Errorf("%w: more than %d bytes", ErrPieceMismatch, t.Length)
	}
	return nil
}
