// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command psxgpu drives the render pipeline without an emulator
// attached: it feeds the command queue a demo scene, reports pipeline
// statistics and captures the scanned-out display.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirsle/configdir"

	"github.com/yeager/psxgpu"
	"github.com/yeager/psxgpu/device"
)

func main() {
	cfg := parseArgs(os.Args[1:])
	setupLogging(cfg.Log)

	switch cfg.mode {
	case adaptersMode:
		showAdapters(os.Stdout)
	case versionMode:
		fmt.Println("psxgpu", psxgpu.Version)
	default:
		settings, err := loadSettings(cfg.Config)
		checkf(err, "failed to load settings")
		checkf(runDemo(settings, cfg.Demo), "demo failed")
	}
}

func setupLogging(level string) {
	if level == "off" {
		return
	}
	lvl := slog.LevelInfo
	if level == "debug" {
		lvl = slog.LevelDebug
	}
	psxgpu.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
}

var configDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("psxgpu")
	if err := configdir.MakePath(dir); err != nil {
		fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const settingsFilename = "settings.toml"

// loadSettings reads the settings file, defaulting to the per-user
// config directory. On first run the defaults are written out so users
// have a file to edit.
func loadSettings(override string) (psxgpu.Settings, error) {
	path := override
	if path == "" {
		path = filepath.Join(configDir(), settingsFilename)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := psxgpu.SaveSettings(path, psxgpu.DefaultSettings()); err != nil {
				return psxgpu.Settings{}, err
			}
		}
	}
	return psxgpu.LoadSettings(path)
}

func showAdapters(w io.Writer) {
	fmt.Fprintln(w, "render APIs:")
	for _, api := range []device.RenderAPI{device.APIVulkan, device.APINoop, device.APINull} {
		status := "not registered"
		if device.IsAPIRegistered(api) {
			status = "registered"
		}
		fmt.Fprintf(w, "  %-8s %s\n", api, status)
	}

	info, err := device.ProbeAdapter()
	if err != nil {
		fmt.Fprintf(w, "adapter probe failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "adapter: %s\n", info.Name)
	if info.Vendor != "" {
		fmt.Fprintf(w, "  vendor:   %s\n", info.Vendor)
	}
	if info.Driver != "" {
		fmt.Fprintf(w, "  driver:   %s\n", info.Driver)
	}
	fmt.Fprintf(w, "  discrete: %v\n", info.Discrete)
}
