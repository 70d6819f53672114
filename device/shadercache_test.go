// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeCompiler returns a deterministic SPIR-V blob derived from the
// source length and counts invocations.
type fakeCompiler struct {
	calls int
	fail  error
}

func (f *fakeCompiler) compile(source string) ([]byte, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	blob := make([]byte, 8)
	binary.LittleEndian.PutUint32(blob[0:], 0x07230203)
	binary.LittleEndian.PutUint32(blob[4:], uint32(len(source)))
	return blob, nil
}

func newTestCache(t *testing.T, dir, version string) (*ShaderCache, *fakeCompiler) {
	t.Helper()
	c, err := NewShaderCache(dir, version)
	if err != nil {
		t.Fatalf("NewShaderCache: %v", err)
	}
	fc := &fakeCompiler{}
	c.compile = fc.compile
	return c, fc
}

func TestShaderCacheMemoizes(t *testing.T) {
	c, fc := newTestCache(t, "", "")

	first, err := c.Get("blit", "shader-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get("blit", "shader-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fc.calls != 1 {
		t.Errorf("compile called %d times, want 1", fc.calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("memoized words differ (-first +second):\n%s", diff)
	}

	// A different source is a different entry.
	if _, err := c.Get("blit", "shader-b"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fc.calls != 2 {
		t.Errorf("compile called %d times, want 2", fc.calls)
	}
}

func TestShaderCachePersistsToDisk(t *testing.T) {
	dir := t.TempDir()

	c, fc := newTestCache(t, dir, "v1")
	words, err := c.Get("blit", "source")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fc.calls != 1 {
		t.Fatalf("compile called %d times, want 1", fc.calls)
	}

	// A fresh cache over the same directory serves from disk.
	c2, fc2 := newTestCache(t, dir, "v1")
	words2, err := c2.Get("blit", "source")
	if err != nil {
		t.Fatalf("Get from disk: %v", err)
	}
	if fc2.calls != 0 {
		t.Errorf("compile called %d times on warm cache, want 0", fc2.calls)
	}
	if diff := cmp.Diff(words, words2); diff != "" {
		t.Errorf("disk round trip mismatch (-memory +disk):\n%s", diff)
	}
}

func TestShaderCacheVersionWipe(t *testing.T) {
	dir := t.TempDir()

	c, _ := newTestCache(t, dir, "v1")
	if _, err := c.Get("blit", "source"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	// Version tag plus one cached binary.
	if len(entries) != 2 {
		t.Fatalf("expected 2 cache files, got %d", len(entries))
	}

	// New version: the old binary is discarded and must recompile.
	c2, fc2 := newTestCache(t, dir, "v2")
	if _, err := c2.Get("blit", "source"); err != nil {
		t.Fatalf("Get after wipe: %v", err)
	}
	if fc2.calls != 1 {
		t.Errorf("compile called %d times after version wipe, want 1", fc2.calls)
	}

	tag, err := os.ReadFile(filepath.Join(dir, shaderCacheVersionFile))
	if err != nil {
		t.Fatalf("read version tag: %v", err)
	}
	if string(tag) != "v2" {
		t.Errorf("version tag %q, want v2", tag)
	}
}

func TestShaderCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()

	c, _ := newTestCache(t, dir, "v1")
	if _, err := c.Get("blit", "source"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Truncate the cached binary to a non-word-aligned length.
	key := shaderKey("blit", "source")
	path := filepath.Join(dir, fmt.Sprintf("blit-%016x.spv", key))
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	c2, fc2 := newTestCache(t, dir, "v1")
	if _, err := c2.Get("blit", "source"); err != nil {
		t.Fatalf("Get over corrupt entry: %v", err)
	}
	if fc2.calls != 1 {
		t.Errorf("compile called %d times over corrupt entry, want 1", fc2.calls)
	}
}

func TestShaderCacheCompileError(t *testing.T) {
	c, fc := newTestCache(t, "", "")
	boom := errors.New("parse error")
	fc.fail = boom

	if _, err := c.Get("blit", "bad source"); !errors.Is(err, boom) {
		t.Fatalf("Get error %v, want wrapped compile failure", err)
	}
}

func TestSanitizeShaderName(t *testing.T) {
	cases := map[string]string{
		"blit":          "blit",
		"my shader":     "my_shader",
		"a/b\\c":        "a_b_c",
		"Display-Blit2": "Display-Blit2",
	}
	for in, want := range cases {
		if got := sanitizeShaderName(in); got != want {
			t.Errorf("sanitizeShaderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSpirvWords(t *testing.T) {
	if _, err := spirvWords(nil); err == nil {
		t.Error("expected error for empty blob")
	}
	if _, err := spirvWords([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for misaligned blob")
	}
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0xEF, 0xBE, 0xAD, 0xDE})
	if err != nil {
		t.Fatalf("spirvWords: %v", err)
	}
	want := []uint32{0x07230203, 0xDEADBEEF}
	if diff := cmp.Diff(want, words); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
}
