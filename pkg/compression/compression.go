// Package compression provides the reversible payload transforms applied to
// large cache values, together with the JSON serialization that feeds them.
package compression

import (
	"encoding/json"
	"fmt"
)

// CompressorType identifies a compression algorithm
type CompressorType string

const (
	// CompressorNone stores serialized data as is
	CompressorNone CompressorType = "none"

	// CompressorGzip uses gzip
	CompressorGzip CompressorType = "gzip"

	// CompressorDeflate uses raw deflate
	CompressorDeflate CompressorType = "deflate"

	// CompressorZstd uses zstandard
	CompressorZstd CompressorType = "zstd"
)

// DefaultMinSize is the serialized size above which values are compressed
const DefaultMinSize = 1024

// Compressor is a lossless byte transform. Decompress must invert Compress.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// Config holds compression settings
type Config struct {
	// Enabled turns compression on for entries whose serialized size exceeds MinSize
	Enabled bool

	// Algorithm selects the compressor
	Algorithm CompressorType

	// MinSize is the threshold in bytes; only larger payloads are compressed
	MinSize int

	// Level is the algorithm specific level, -1 for the default
	Level int
}

// NewDefaultConfig returns a disabled gzip configuration with a 1KB threshold
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Algorithm: CompressorGzip,
		MinSize:   DefaultMinSize,
		Level:     -1,
	}
}

// WithEnabled toggles compression
func (c *Config) WithEnabled(enabled bool) *Config {
	c.Enabled = enabled
	return c
}

// WithAlgorithm sets the compression algorithm
func (c *Config) WithAlgorithm(algorithm CompressorType) *Config {
	c.Algorithm = algorithm
	return c
}

// WithMinSize sets the size threshold
func (c *Config) WithMinSize(minSize int) *Config {
	c.MinSize = minSize
	return c
}

// WithLevel sets the compression level
func (c *Config) WithLevel(level int) *Config {
	c.Level = level
	return c
}

// NewCompressor builds the compressor described by config.
// A nil or disabled config yields the no-op compressor.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil || !config.Enabled {
		return NewNoOpCompressor(), nil
	}

	switch config.Algorithm {
	case CompressorNone:
		return NewNoOpCompressor(), nil
	case CompressorGzip:
		return NewGzipCompressor(config.Level), nil
	case CompressorDeflate:
		return NewDeflateCompressor(config.Level), nil
	case CompressorZstd:
		return NewZstdCompressor(config.Level)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// ShouldCompress reports whether a payload of size bytes exceeds threshold
func ShouldCompress(size, threshold int) bool {
	return size > threshold
}

// Serialize encodes value to its JSON form
func Serialize(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize value: %w", err)
	}
	return data, nil
}

// SerializeAndCompress serializes value and compresses it when the serialized
// size exceeds minSize. It reports whether compression was applied.
func SerializeAndCompress(value any, compressor Compressor, minSize int) ([]byte, bool, error) {
	data, err := Serialize(value)
	if err != nil {
		return nil, false, err
	}

	if !ShouldCompress(len(data), minSize) {
		return data, false, nil
	}

	compressed, err := compressor.Compress(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to compress value with %s: %w", compressor.Name(), err)
	}

	return compressed, true, nil
}

// DecompressAndDeserialize reverses SerializeAndCompress into out
func DecompressAndDeserialize(data []byte, compressed bool, compressor Compressor, out any) error {
	if compressed {
		raw, err := compressor.Decompress(data)
		if err != nil {
			return fmt.Errorf("failed to decompress value with %s: %w", compressor.Name(), err)
		}
		data = raw
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to deserialize value: %w", err)
	}
	return nil
}
