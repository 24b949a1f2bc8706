package compression

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// payload is a repetitive JSON-like body large enough to shrink
func payload() []byte {
	var b strings.Builder
	b.WriteString(`{"rows":[`)
	for i := 0; i < 100; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"id":%d,"status":"active","region":"eu-west"}`, i)
	}
	b.WriteString(`]}`)
	return []byte(b.String())
}

func allCompressors(t *testing.T) []Compressor {
	t.Helper()

	zstdCompressor, err := NewZstdCompressor(-1)
	if err != nil {
		t.Fatalf("NewZstdCompressor failed: %v", err)
	}
	return []Compressor{
		NewNoOpCompressor(),
		NewGzipCompressor(-1),
		NewDeflateCompressor(-1),
		zstdCompressor,
	}
}

func TestCompressorsInvertEachOther(t *testing.T) {
	inputs := map[string][]byte{
		"empty":   {},
		"short":   []byte(`"x"`),
		"payload": payload(),
	}

	for _, c := range allCompressors(t) {
		for name, input := range inputs {
			t.Run(c.Name()+"/"+name, func(t *testing.T) {
				packed, err := c.Compress(input)
				if err != nil {
					t.Fatalf("Compress failed: %v", err)
				}
				unpacked, err := c.Decompress(packed)
				if err != nil {
					t.Fatalf("Decompress failed: %v", err)
				}
				if !bytes.Equal(unpacked, input) {
					t.Errorf("Decompress(Compress(x)) != x for %d bytes", len(input))
				}
			})
		}
	}
}

func TestCompressorsShrinkRepetitiveData(t *testing.T) {
	data := payload()
	for _, c := range allCompressors(t) {
		if c.Name() == string(CompressorNone) {
			continue
		}
		packed, err := c.Compress(data)
		if err != nil {
			t.Fatalf("%s: Compress failed: %v", c.Name(), err)
		}
		if len(packed) >= len(data)/2 {
			t.Errorf("%s: expected at least 2x reduction, %d -> %d", c.Name(), len(data), len(packed))
		}
	}
}

func TestCompressorsRejectForeignPayloads(t *testing.T) {
	garbage := []byte("definitely not a compressed stream")
	zstdCompressor, err := NewZstdCompressor(-1)
	if err != nil {
		t.Fatalf("NewZstdCompressor failed: %v", err)
	}

	// raw deflate has no header, so only the framed formats can tell
	for _, c := range []Compressor{NewGzipCompressor(-1), zstdCompressor} {
		if _, err := c.Decompress(garbage); err == nil {
			t.Errorf("%s: expected an error for a foreign payload", c.Name())
		}
	}

	gzipped, _ := NewGzipCompressor(-1).Compress(payload())
	if _, err := zstdCompressor.Decompress(gzipped); err == nil {
		t.Error("zstd must not accept a gzip stream")
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, err := NewGzipCompressor(42).Compress(payload()); err == nil {
		t.Error("Expected gzip level 42 to be rejected")
	}
	if _, err := NewDeflateCompressor(42).Compress(payload()); err == nil {
		t.Error("Expected deflate level 42 to be rejected")
	}
}

func TestZstdLevels(t *testing.T) {
	data := payload()
	for _, level := range []int{-1, 1, 3, 19} {
		c, err := NewZstdCompressor(level)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		packed, _ := c.Compress(data)
		unpacked, err := c.Decompress(packed)
		if err != nil || !bytes.Equal(unpacked, data) {
			t.Errorf("level %d: round trip failed: %v", level, err)
		}
	}
}

func TestZstdConcurrentUse(t *testing.T) {
	c, err := NewZstdCompressor(-1)
	if err != nil {
		t.Fatalf("NewZstdCompressor failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte(strings.Repeat(fmt.Sprintf("worker-%d;", i), 200))
			packed, _ := c.Compress(data)
			unpacked, err := c.Decompress(packed)
			if err != nil || !bytes.Equal(unpacked, data) {
				errs <- fmt.Errorf("worker %d: round trip failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestConfig(t *testing.T) {
	defaults := NewDefaultConfig()
	want := Config{Enabled: false, Algorithm: CompressorGzip, MinSize: DefaultMinSize, Level: -1}
	if *defaults != want {
		t.Errorf("Expected defaults %+v, got %+v", want, *defaults)
	}

	built := NewDefaultConfig().WithEnabled(true).WithAlgorithm(CompressorZstd).WithMinSize(64).WithLevel(3)
	want = Config{Enabled: true, Algorithm: CompressorZstd, MinSize: 64, Level: 3}
	if *built != want {
		t.Errorf("Expected built config %+v, got %+v", want, *built)
	}
}

func TestNewCompressor(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		wantName string
		wantErr  bool
	}{
		{"nil config", nil, "none", false},
		{"disabled", NewDefaultConfig().WithAlgorithm(CompressorZstd), "none", false},
		{"none", NewDefaultConfig().WithEnabled(true).WithAlgorithm(CompressorNone), "none", false},
		{"gzip", NewDefaultConfig().WithEnabled(true), "gzip", false},
		{"deflate", NewDefaultConfig().WithEnabled(true).WithAlgorithm(CompressorDeflate), "deflate", false},
		{"zstd", NewDefaultConfig().WithEnabled(true).WithAlgorithm(CompressorZstd), "zstd", false},
		{"unknown", NewDefaultConfig().WithEnabled(true).WithAlgorithm("brotli"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompressor(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCompressor failed: %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, c.Name())
			}
		})
	}
}

func TestShouldCompress(t *testing.T) {
	tests := []struct {
		size, threshold int
		want            bool
	}{
		{0, 0, false},
		{1, 0, true},
		{1023, 1024, false},
		{1024, 1024, false},
		{1025, 1024, true},
	}

	for _, tt := range tests {
		if got := ShouldCompress(tt.size, tt.threshold); got != tt.want {
			t.Errorf("ShouldCompress(%d, %d) = %v, want %v", tt.size, tt.threshold, got, tt.want)
		}
	}
}

type invoice struct {
	Number string   `json:"number"`
	Lines  []string `json:"lines"`
	Total  float64  `json:"total"`
}

func TestSerializeAndCompress(t *testing.T) {
	gzipCompressor := NewGzipCompressor(-1)
	large := invoice{Number: "INV-1", Lines: strings.Split(strings.Repeat("widget,", 300), ","), Total: 99.5}
	small := invoice{Number: "INV-2", Total: 1}

	data, compressed, err := SerializeAndCompress(large, gzipCompressor, DefaultMinSize)
	if err != nil {
		t.Fatalf("SerializeAndCompress failed: %v", err)
	}
	if !compressed {
		t.Fatal("Expected the large invoice to be compressed")
	}
	var gotLarge invoice
	if err := DecompressAndDeserialize(data, true, gzipCompressor, &gotLarge); err != nil {
		t.Fatalf("DecompressAndDeserialize failed: %v", err)
	}
	if !reflect.DeepEqual(gotLarge, large) {
		t.Error("Large invoice did not round-trip")
	}

	data, compressed, err = SerializeAndCompress(small, gzipCompressor, DefaultMinSize)
	if err != nil {
		t.Fatalf("SerializeAndCompress failed: %v", err)
	}
	if compressed {
		t.Fatal("Small invoice is below the threshold")
	}
	var gotSmall invoice
	if err := DecompressAndDeserialize(data, false, gzipCompressor, &gotSmall); err != nil {
		t.Fatalf("DecompressAndDeserialize failed: %v", err)
	}
	if !reflect.DeepEqual(gotSmall, small) {
		t.Error("Small invoice did not round-trip")
	}
}

func TestSerializeErrors(t *testing.T) {
	if _, err := Serialize(make(chan int)); err == nil {
		t.Error("Expected channels to be unserializable")
	}
	if _, _, err := SerializeAndCompress(func() {}, NewGzipCompressor(-1), 0); err == nil {
		t.Error("Expected functions to be unserializable")
	}

	var out invoice
	err := DecompressAndDeserialize([]byte("garbage"), true, NewGzipCompressor(-1), &out)
	if err == nil || !strings.Contains(err.Error(), "gzip") {
		t.Errorf("Expected a decompression error naming gzip, got %v", err)
	}

	err = DecompressAndDeserialize([]byte("{"), false, NewNoOpCompressor(), &out)
	if err == nil || !strings.Contains(err.Error(), "deserialize") {
		t.Errorf("Expected a deserialization error, got %v", err)
	}
}
