package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultBufferSize is the transfer chunk size used when --buffer-size
// is not given: 1 MiB.
const DefaultBufferSize = 1 << 20

// Config describes a single range copy. It is built once by the CLI,
// checked by validate.Check, and read-only from then on.
type Config struct {
	Src string
	Dst string

	// SrcOffset is the byte position in Src where reading begins.
	SrcOffset int64
	// DstOffset is the byte position in Dst where writing begins.
	DstOffset int64
	// Count is the number of bytes to move. nil means everything from
	// SrcOffset through the end of Src.
	Count *int64

	// BufferSize is the size of the read/write chunk in bytes.
	BufferSize int
	// Verbose enables progress reporting.
	Verbose bool
}

// File is the optional defaults file. Fields are pointers so that only
// values actually present in the file override flag defaults.
type File struct {
	Defaults Defaults `toml:"defaults"`
}

// Defaults holds persistent flag defaults.
type Defaults struct {
	BufferSize *string `toml:"buffer-size"`
	Verbose    *bool   `toml:"verbose"`
}

// Path returns the resolved path to the defaults file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "bcp", "config.toml")
}

// Load reads the defaults file from the XDG path. Returns a zero File
// (no error) if the file does not exist; the file is always optional.
func Load() (File, error) {
	path := Path()
	if path == "" {
		return File{}, nil
	}

	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, nil
		}
		return File{}, err
	}
	return f, nil
}

var sizeSuffixes = map[byte]int64{
	'B': 1,
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSize parses a byte size with an optional B/K/M/G/T suffix
// (case-insensitive, powers of 1024), e.g. "1048576", "64K", "1.5G".
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}

	multiplier := int64(1)
	numStr := s
	if mult, ok := sizeSuffixes[strings.ToUpper(s)[len(s)-1]]; ok {
		multiplier = mult
		numStr = s[:len(s)-1]
	}
	if numStr == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	// Integer first; fall back to float for values like "1.5G".
	if n, err := strconv.ParseInt(numStr, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative size %q", s)
		}
		return n * multiplier, nil
	}
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int64(f * float64(multiplier)), nil
}
