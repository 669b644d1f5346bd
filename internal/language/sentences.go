package language

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Default sentence banks compiled into the binary. They back any language
// whose sentence file is missing or empty so a bare deployment still serves
// practice sentences.

//go:embed banks/en.txt
var defaultBankEN []byte

//go:embed banks/vi.txt
var defaultBankVI []byte

var defaultBanks = map[string][]byte{
	"en": defaultBankEN,
	"vi": defaultBankVI,
}

// DefaultSentences returns the embedded bank for code, or nil when none is
// compiled in.
func DefaultSentences(code string) []string {
	data, ok := defaultBanks[code]
	if !ok {
		return nil
	}
	return parseSentences(data)
}

// LoadSentences reads the newline-delimited sentence bank at dir/<code>.txt.
// A missing or empty file logs a warning and falls back to the embedded
// default bank for that code.
func LoadSentences(dir, code string) []string {
	path := filepath.Join(dir, code+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("sentence file not readable, using embedded bank", "path", path, "error", err)
		return DefaultSentences(code)
	}
	sentences := parseSentences(data)
	if len(sentences) == 0 {
		slog.Warn("sentence file holds no sentences, using embedded bank", "path", path)
		return DefaultSentences(code)
	}
	return sentences
}

// parseSentences splits data into trimmed non-empty lines.
func parseSentences(data []byte) []string {
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
