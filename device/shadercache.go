// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/naga"
)

// shaderCacheVersionFile names the tag file inside the cache
// directory. Its contents must match the configured version or the
// whole cache is discarded.
const shaderCacheVersionFile = "version"

// ShaderCache compiles WGSL to SPIR-V through naga and keeps the
// binaries on disk so later runs skip compilation. The cache is keyed
// by shader name plus a hash of the source; a version tag mismatch
// (driver update, format change) wipes the directory wholesale.
//
// A ShaderCache with an empty directory works purely in memory.
type ShaderCache struct {
	mu      sync.Mutex
	dir     string
	version string
	memory  map[uint64][]uint32

	// compile translates WGSL to SPIR-V bytes. Tests substitute a
	// deterministic stand-in.
	compile func(source string) ([]byte, error)
}

// NewShaderCache opens (or creates) the cache rooted at dir. A
// version tag that differs from the one on disk invalidates every
// cached binary. Empty dir disables persistence.
func NewShaderCache(dir, version string) (*ShaderCache, error) {
	c := &ShaderCache{
		dir:     dir,
		version: version,
		memory:  make(map[uint64][]uint32),
		compile: naga.Compile,
	}
	if dir == "" {
		return c, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shader cache dir: %w", err)
	}

	tagPath := filepath.Join(dir, shaderCacheVersionFile)
	tag, err := os.ReadFile(tagPath)
	if err == nil && string(tag) == version {
		return c, nil
	}

	// Stale or missing tag: drop every cached binary, then stamp the
	// new version.
	if err := c.wipe(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(tagPath, []byte(version), 0o644); err != nil {
		return nil, fmt.Errorf("write shader cache tag: %w", err)
	}
	return c, nil
}

// wipe removes all cached shader binaries. The version file is
// rewritten by the caller.
func (c *ShaderCache) wipe() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read shader cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("clear shader cache: %w", err)
		}
	}
	slogger().Info("shader cache invalidated", "dir", c.dir, "version", c.version)
	return nil
}

// Get returns the SPIR-V words for a named WGSL shader, compiling and
// caching on the first request. The returned slice is shared; callers
// must not modify it.
func (c *ShaderCache) Get(name, source string) ([]uint32, error) {
	key := shaderKey(name, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if words, ok := c.memory[key]; ok {
		return words, nil
	}

	path := ""
	if c.dir != "" {
		path = filepath.Join(c.dir, fmt.Sprintf("%s-%016x.spv", sanitizeShaderName(name), key))
		if blob, err := os.ReadFile(path); err == nil {
			words, err := spirvWords(blob)
			if err == nil {
				c.memory[key] = words
				return words, nil
			}
			// Corrupt entry: fall through to recompile.
			slogger().Warn("discarding corrupt shader cache entry", "path", path, "error", err)
		}
	}

	blob, err := c.compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader %s: %w", name, err)
	}
	words, err := spirvWords(blob)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}

	if path != "" {
		// Cache write failures only cost a recompile next run.
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			slogger().Warn("shader cache write failed", "path", path, "error", err)
		}
	}

	c.memory[key] = words
	return words, nil
}

// shaderKey hashes the shader name and source together.
func shaderKey(name, source string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return h.Sum64()
}

// sanitizeShaderName keeps cache file names portable.
func sanitizeShaderName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}

// spirvWords converts SPIR-V bytes to the little-endian 32-bit words
// hal shader modules expect.
func spirvWords(blob []byte) ([]uint32, error) {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V length %d", len(blob))
	}
	words := make([]uint32, len(blob)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}
	return words, nil
}
