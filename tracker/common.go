package tracker

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FileNameSeparator splits a single file_names string into names.
const FileNameSeparator = ","

// Peer is one announce record: a serving address and the file names it
// offers under an info hash.
type Peer struct {
	IP        string   `json:"ip"`
	Port      uint16   `json:"port"`
	FileNames []string `json:"file_names"`
}

// Addr returns host:port.
func (p Peer) Addr() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(int(p.Port)))
}

func (p Peer) equal(o Peer) bool {
	if p.IP != o.IP || p.Port != o.Port || len(p.FileNames) != len(o.FileNames) {
		return false
	}
	for i := range p.FileNames {
		if p.FileNames[i] != o.FileNames[i] {
			return false
		}
	}
	return true
}

func (p Peer) clone() Peer {
	p.FileNames = append([]string(nil), p.FileNames...)
	return p
}

// AnnounceRequest is the body of an announce call.
type AnnounceRequest struct {
	InfoHash  string    `json:"info_hash"`
	FileNames FileNames `json:"file_names"`
	IP        string    `json:"ip"`
	Port      Port      `json:"port"`
}

// FileNames decodes from either a JSON list or a single comma separated
// string.
type FileNames []string

func (f *FileNames) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*f = FileNames{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("file_names must be a string or a list of strings")
	}
	*f = many
	return nil
}

// Port decodes from a JSON number or a numeric string.
type Port uint16

func (p *Port) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port %s", data)
	}
	*p = Port(n)
	return nil
}

// SplitFileNames splits every entry on FileNameSeparator and drops blanks.
func SplitFileNames(names []string) []string {
	var out []string
	for _, n := range names {
		for _, part := range strings.Split(n, FileNameSeparator) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
