package torrentfile

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vaguilera/MiniTorrent/codec"
)

// DefaultPieceLength is the piece size used when none is configured.
const DefaultPieceLength = 1024 * 1024

// ErrInvalidInput is returned by Build for unusable arguments.
var ErrInvalidInput = errors.New("invalid input")

// NumPieces returns ceil(total / pieceLength).
func NumPieces(total uint64, pieceLength int) int {
	if pieceLength <= 0 {
		return 0
	}
	pl := uint64(pieceLength)
	return int((total + pl - 1) / pl)
}

// Build splits data into pieceLength chunks, hashes each one and derives the
// info hash from the canonical encoding of the info dictionary. Empty files
// are rejected.
func Build(data []byte, name string, pieceLength int) (*Torrent, error) {
	if pieceLength <= 0 {
		return nil, fmt.Errorf("%w: piece length must be positive, got %d", ErrInvalidInput, pieceLength)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidInput)
	}

	t := &Torrent{
		Name:        name,
		Length:      uint64(len(data)),
		PieceLength: pieceLength,
		PieceHashes: make([][20]byte, 0, NumPieces(uint64(len(data)), pieceLength)),
	}
	for off := 0; off < len(data); off += pieceLength {
		end := off + pieceLength
		if end > len(data) {
			end = len(data)
		}
		t.PieceHashes = append(t.PieceHashes, sha1.Sum(data[off:end]))
	}
	t.InfoHash = generateInfoHash(t.InfoDict())
	return t, nil
}

// InfoDict returns the info dictionary the info hash is computed over.
func (t *Torrent) InfoDict() codec.Dict {
	pieces := make([]byte, 0, len(t.PieceHashes)*20)
	for _, h := range t.PieceHashes {
		pieces = append(pieces, h[:]...)
	}
	return codec.Dict{
		"name":         codec.String(t.Name),
		"length":       codec.Int(t.Length),
		"piece length": codec.Int(t.PieceLength),
		"pieces":       codec.String(pieces),
	}
}

// HexInfoHash returns the info hash as the lowercase hex string the tracker
// uses.
func (t *Torrent) HexInfoHash() string {
	return hex.EncodeToString(t.InfoHash[:])
}

// PieceSize returns the length of piece i; only the last piece may be short.
func (t *Torrent) PieceSize(i int) int {
	if i == len(t.PieceHashes)-1 {
		if rem := int(t.Length % uint64(t.PieceLength)); rem != 0 {
			return rem
		}
	}
	return t.PieceLength
}

func generateInfoHash(info codec.Dict) [20]byte {
	return sha1.Sum(codec.Encode(info))
}
