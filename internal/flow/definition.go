package flow

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownSector is returned for labels not present in a definition
	ErrUnknownSector = errors.New("unknown sector")

	// ErrInvalidDefinition wraps every definition validation failure
	ErrInvalidDefinition = errors.New("invalid sector definition")
)

//go:embed sectors.yaml
var builtinSectors []byte

// Sector is one sector group: a label, its representative ticker and
// the ordered constituent symbols.
type Sector struct {
	Label        string   `yaml:"label" json:"label"`
	Ticker       string   `yaml:"ticker" json:"ticker"`
	Constituents []string `yaml:"constituents" json:"constituents"`
}

// definitionFile is the YAML document shape
type definitionFile struct {
	Sectors []Sector `yaml:"sectors"`
}

// Definition is an immutable sector → constituents mapping
// ⭐ SSOT: 섹터 구성은 여기서만 (프로세스 시작 시 생성, 이후 변경 없음)
type Definition struct {
	sectors []Sector
	index   map[string]int
}

// NewDefinition validates and normalizes sectors into a Definition.
// The input slice is copied.
func NewDefinition(sectors []Sector) (*Definition, error) {
	d := &Definition{
		sectors: make([]Sector, 0, len(sectors)),
		index:   make(map[string]int, len(sectors)),
	}

	if len(sectors) == 0 {
		return nil, fmt.Errorf("%w: no sectors", ErrInvalidDefinition)
	}

	for i, s := range sectors {
		normalized, err := normalizeSector(s)
		if err != nil {
			return nil, fmt.Errorf("%w: sectors[%d]: %v", ErrInvalidDefinition, i, err)
		}
		if _, dup := d.index[normalized.Label]; dup {
			return nil, fmt.Errorf("%w: sectors[%d]: duplicate label %q", ErrInvalidDefinition, i, normalized.Label)
		}
		d.index[normalized.Label] = len(d.sectors)
		d.sectors = append(d.sectors, normalized)
	}

	return d, nil
}

func normalizeSector(s Sector) (Sector, error) {
	label := strings.TrimSpace(s.Label)
	if label == "" {
		return Sector{}, errors.New("label is required")
	}

	ticker := strings.ToUpper(strings.TrimSpace(s.Ticker))
	if ticker == "" {
		// "SMH (Semiconductors)" → SMH
		ticker = strings.ToUpper(strings.Fields(label)[0])
	}

	seen := make(map[string]bool, len(s.Constituents))
	constituents := make([]string, 0, len(s.Constituents))
	for _, c := range s.Constituents {
		sym := strings.ToUpper(strings.TrimSpace(c))
		if sym == "" {
			return Sector{}, fmt.Errorf("%s: empty constituent", label)
		}
		if seen[sym] {
			return Sector{}, fmt.Errorf("%s: duplicate constituent %s", label, sym)
		}
		seen[sym] = true
		constituents = append(constituents, sym)
	}
	if len(constituents) == 0 {
		return Sector{}, fmt.Errorf("%s: constituents are required", label)
	}

	return Sector{Label: label, Ticker: ticker, Constituents: constituents}, nil
}

// DefaultDefinition returns the built-in twelve sector groups
func DefaultDefinition() *Definition {
	d, err := ParseDefinition(bytes.NewReader(builtinSectors))
	if err != nil {
		// embedded file is covered by tests
		panic(fmt.Sprintf("flow: built-in sectors.yaml: %v", err))
	}
	return d
}

// LoadDefinition reads a YAML definition file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sector definition: %w", err)
	}
	return ParseDefinition(bytes.NewReader(data))
}

// ParseDefinition decodes a YAML definition.
// KnownFields(true): 오타/미사용 필드는 즉시 실패
func ParseDefinition(r io.Reader) (*Definition, error) {
	var file definitionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return NewDefinition(file.Sectors)
}

// Sectors returns a copy of the sectors in definition order
func (d *Definition) Sectors() []Sector {
	out := make([]Sector, len(d.sectors))
	for i, s := range d.sectors {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of sectors
func (d *Definition) Len() int {
	return len(d.sectors)
}

// Lookup returns the sector for a label
func (d *Definition) Lookup(label string) (Sector, bool) {
	i, ok := d.index[strings.TrimSpace(label)]
	if !ok {
		return Sector{}, false
	}
	return d.sectors[i].clone(), true
}

// Sector is Lookup with an error for unknown labels
func (d *Definition) Sector(label string) (Sector, error) {
	s, ok := d.Lookup(label)
	if !ok {
		return Sector{}, fmt.Errorf("%w: %q", ErrUnknownSector, label)
	}
	return s, nil
}

// Find resolves a label, falling back to a representative ticker
// (case-insensitive). The first sector with that ticker wins.
func (d *Definition) Find(key string) (Sector, bool) {
	if s, ok := d.Lookup(key); ok {
		return s, true
	}
	ticker := strings.ToUpper(strings.TrimSpace(key))
	for _, s := range d.sectors {
		if s.Ticker == ticker {
			return s.clone(), true
		}
	}
	return Sector{}, false
}

// Tickers returns the representative tickers in definition order.
// Sectors sharing a ticker produce it once.
func (d *Definition) Tickers() []string {
	seen := make(map[string]bool, len(d.sectors))
	out := make([]string, 0, len(d.sectors))
	for _, s := range d.sectors {
		if seen[s.Ticker] {
			continue
		}
		seen[s.Ticker] = true
		out = append(out, s.Ticker)
	}
	return out
}

// Hash identifies the definition content (canonical JSON, SHA256).
// Snapshots record it so history rows can be traced to their sector groups.
func (d *Definition) Hash() string {
	data, _ := json.Marshal(d.sectors) // []Sector of strings always marshals
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s Sector) clone() Sector {
	s.Constituents = append([]string(nil), s.Constituents...)
	return s
}
