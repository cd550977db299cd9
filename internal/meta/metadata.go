package meta

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/negrel/assert"
	"github.com/trim21/errgo"

	"tget/internal/bencode"
)

// ErrFormat matches every error returned by Parse.
var ErrFormat = errors.New("invalid torrent")

// FormatError is returned for any torrent that can't be parsed. Err is the underlying cause,
// which may itself be a *bencode.FormatError.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return "invalid torrent: " + e.Err.Error()
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

type File struct {
	Path   string `json:"path"`
	Length int64  `json:"length"`
}

// Metadata is the parsed content of a .torrent file. It is never modified after Parse returns.
type Metadata struct {
	Info          bencode.Dict
	Announce      string
	Comment       string
	CreatedBy     string
	Name          string
	AnnounceList  []string
	Files         []File
	Pieces        []byte
	InfoBytes     []byte
	TotalLength   int64
	PieceLength   int64
	LastPieceSize int64
	NumPieces     uint32
	Hash          Hash
	Private       bool
}

// Load reads and parses the torrent file at path.
func Load(path string) (*Metadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errgo.Wrap(err, "failed to read torrent file")
	}

	return Parse(b)
}

func Parse(b []byte) (*Metadata, error) {
	m, err := parse(b)
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	return m, nil
}

func parse(b []byte) (*Metadata, error) {
	v, err := bencode.DecodeBytes(b)
	if err != nil {
		return nil, err
	}

	root, ok := v.(bencode.Dict)
	if !ok {
		return nil, fmt.Errorf("top level value is a %s, not a dictionary", bencode.Kind(v))
	}

	var m Metadata

	if root.Has("announce") {
		s, err := bencode.Require[bencode.String](root, "announce")
		if err != nil {
			return nil, err
		}
		m.Announce = string(s)
	}

	m.AnnounceList = announceList(root, m.Announce)
	if len(m.AnnounceList) == 0 {
		return nil, errors.New("torrent has no tracker")
	}

	if m.Announce == "" {
		m.Announce = m.AnnounceList[0]
	}

	m.Comment, _ = root.Text("comment")
	m.CreatedBy, _ = root.Text("created by")

	info, err := bencode.Require[bencode.Dict](root, "info")
	if err != nil {
		return nil, err
	}

	if err := m.parseInfo(info); err != nil {
		return nil, err
	}

	m.Info = info
	m.InfoBytes = bencode.Encode(info)
	m.Hash = sha1.Sum(m.InfoBytes)

	return &m, nil
}

// announceList flattens the tiers of "announce-list" to the first url of each tier.
// Tiers that are empty or whose first entry isn't a string are skipped.
func announceList(root bencode.Dict, announce string) []string {
	var urls []string

	tiers, _ := root.List("announce-list")
	for _, t := range tiers {
		tier, ok := t.(bencode.List)
		if !ok || len(tier) == 0 {
			continue
		}

		u, ok := tier[0].(bencode.String)
		if !ok || len(u) == 0 {
			continue
		}

		if !slices.Contains(urls, string(u)) {
			urls = append(urls, string(u))
		}
	}

	if len(urls) == 0 && announce != "" {
		return []string{announce}
	}

	return urls
}

func (m *Metadata) parseInfo(info bencode.Dict) error {
	name, err := bencode.Require[bencode.String](info, "name")
	if err != nil {
		return err
	}
	m.Name = string(name)
	if n, ok := info.Text("name.utf-8"); ok && n != "" {
		m.Name = n
	}

	pieceLength, err := bencode.Require[bencode.Int](info, "piece length")
	if err != nil {
		return err
	}
	if pieceLength <= 0 {
		return fmt.Errorf("piece length %d is not positive", pieceLength)
	}
	m.PieceLength = int64(pieceLength)

	pieces, err := bencode.Require[bencode.String](info, "pieces")
	if err != nil {
		return err
	}
	if len(pieces) == 0 || len(pieces)%sha1.Size != 0 {
		return fmt.Errorf("pieces length %d is not a positive multiple of %d", len(pieces), sha1.Size)
	}
	m.Pieces = pieces
	m.NumPieces = uint32(len(pieces) / sha1.Size)

	if err := m.parseFiles(info); err != nil {
		return err
	}

	expected := (m.TotalLength + m.PieceLength - 1) / m.PieceLength
	if expected != int64(m.NumPieces) {
		return fmt.Errorf("torrent has %d piece hashes but %d bytes need %d pieces of %d bytes",
			m.NumPieces, m.TotalLength, expected, m.PieceLength)
	}

	m.LastPieceSize = m.TotalLength - m.PieceLength*int64(m.NumPieces-1)

	private, _ := info.Int("private")
	m.Private = private == 1

	return nil
}

func (m *Metadata) parseFiles(info bencode.Dict) error {
	if info.Has("length") {
		length, err := bencode.Require[bencode.Int](info, "length")
		if err != nil {
			return err
		}
		if length < 0 {
			return fmt.Errorf("negative length %d", length)
		}

		m.TotalLength = int64(length)
		m.Files = []File{{Path: m.Name, Length: m.TotalLength}}

		return nil
	}

	files, err := bencode.Require[bencode.List](info, "files")
	if err != nil {
		return errors.New("info has neither 'length' nor 'files'")
	}

	m.Files = make([]File, 0, len(files))
	for i, item := range files {
		f, ok := item.(bencode.Dict)
		if !ok {
			return fmt.Errorf("files[%d] is a %s, not a dictionary", i, bencode.Kind(item))
		}

		length, err := bencode.Require[bencode.Int](f, "length")
		if err != nil {
			return fmt.Errorf("files[%d]: %w", i, err)
		}
		if length < 0 {
			return fmt.Errorf("files[%d]: negative length %d", i, length)
		}

		m.TotalLength += int64(length)
		m.Files = append(m.Files, File{Path: filePath(m.Name, f), Length: int64(length)})
	}

	return nil
}

func filePath(name string, f bencode.Dict) string {
	elems := []string{name}

	path, _ := f.List("path")
	for _, p := range path {
		if s, ok := p.(bencode.String); ok {
			elems = append(elems, string(s))
		}
	}

	return filepath.Join(elems...)
}

// PieceHash returns the expected SHA-1 of piece i.
func (m *Metadata) PieceHash(i uint32) Hash {
	assert.False(i >= m.NumPieces)

	var h Hash
	copy(h[:], m.Pieces[int(i)*sha1.Size:])

	return h
}

// PieceSize returns the length of piece i. Only the last piece may be shorter than PieceLength.
func (m *Metadata) PieceSize(i uint32) int64 {
	if i == m.NumPieces-1 {
		return m.LastPieceSize
	}

	return m.PieceLength
}

// PieceOffset returns the offset of piece i in the content.
func (m *Metadata) PieceOffset(i uint32) int64 {
	return int64(i) * m.PieceLength
}
