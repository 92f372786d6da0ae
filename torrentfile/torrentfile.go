package torrentfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	bencode "github.com/jackpal/bencode-go"
	"github.com/vaguilera/MiniTorrent/codec"
	"github.com/vaguilera/MiniTorrent/logging"
)

// ErrInvalidDescriptor is returned when a descriptor decodes but its fields
// are inconsistent.
var ErrInvalidDescriptor = errors.New("invalid descriptor")

func (tf *torrentFile) pieceHashes() ([][20]byte, error) {

	buffer := []byte(tf.Info.Pieces)
	lenbuffer := len(buffer)

	if lenbuffer%20 != 0 {
		return nil, fmt.Errorf("%w: pieces length %d is not a multiple of 20", ErrInvalidDescriptor, lenbuffer)
	}

	hashes := make([][20]byte, lenbuffer/20)
	for i := 0; i < len(hashes); i++ {
		copy(hashes[i][:], buffer[i*20:(i+1)*20])
	}
	return hashes, nil

}

// Encode returns the descriptor file contents: the info dictionary plus the
// tracker announce address.
func (t *Torrent) Encode() []byte {
	return codec.Encode(codec.Dict{
		"announce": codec.String(t.Announce),
		"info":     t.InfoDict(),
	})
}

// WriteFile stores the descriptor at path. The file is written to a temporary
// name first so readers never see a partial descriptor.
func (t *Torrent) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".torrent-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(t.Encode()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func validateInfo(info codec.Dict) error {
	name, err := info.GetBytes("name")
	if err != nil {
		return err
	}
	if len(name) == 0 {
		return errors.New("empty name")
	}
	length, err := info.GetInt("length")
	if err != nil {
		return err
	}
	if length < 0 {
		return fmt.Errorf("negative length %d", length)
	}
	pieceLength, err := info.GetInt("piece length")
	if err != nil {
		return err
	}
	if pieceLength <= 0 {
		return fmt.Errorf("piece length must be positive, got %d", pieceLength)
	}
	pieces, err := info.GetBytes("pieces")
	if err != nil {
		return err
	}
	if len(pieces)%20 != 0 {
		return fmt.Errorf("pieces length %d is not a multiple of 20", len(pieces))
	}
	want := NumPieces(uint64(length), int(pieceLength))
	if got := len(pieces) / 20; got != want {
		return fmt.Errorf("%d piece hashes, want %d pieces", got, want)
	}
	return nil
}

func (tf *torrentFile) printInfo(infoHash [20]byte) {
	logging.Logger.Debug("descriptor loaded",
		"name", tf.Info.Name,
		"size", humanize.IBytes(tf.Info.Length),
		"piece_length", tf.Info.PieceLength,
		"tracker", tf.Announce,
		"info_hash", fmt.Sprintf("%x", infoHash),
	)
}

func newTorrent(tf *torrentFile) (*Torrent, error) {
	t := &Torrent{
		Announce:    tf.Announce,
		Name:        tf.Info.Name,
		Length:      tf.Info.Length,
		PieceLength: tf.Info.PieceLength,
	}

	var err error
	t.PieceHashes, err = tf.pieceHashes()
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TorrentFromBytes parses a descriptor. The info hash is always recomputed
// from the info dictionary, never taken from elsewhere.
func TorrentFromBytes(raw []byte) (*Torrent, error) {
	decoded, err := codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse torrent file: %w", err)
	}

	mapper, ok := decoded.(codec.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not a dictionary", codec.ErrMalformedEncoding)
	}
	if _, ok := mapper["announce"]; ok {
		if _, err := mapper.GetBytes("announce"); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
		}
	}
	info, err := mapper.GetDict("info")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	if err := validateInfo(info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	infoHash := generateInfoHash(info)

	tfile := torrentFile{}
	if err := bencode.Unmarshal(bytes.NewReader(raw), &tfile); err != nil {
		return nil, fmt.Errorf("couldn't map torrent file: %w", err)
	}

	torrent, err := newTorrent(&tfile)
	if err != nil {
		return nil, err
	}
	torrent.InfoHash = infoHash
	tfile.printInfo(infoHash)
	return torrent, nil
}

// TorrentFromFile creates Torrent entity from .torrent file
func TorrentFromFile(fileName string) (*Torrent, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return TorrentFromBytes(raw)
}
