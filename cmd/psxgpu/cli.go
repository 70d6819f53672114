// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

type mode byte

const (
	demoMode     mode = iota // Render the demo scene
	adaptersMode             // Probe the graphics adapter
	versionMode              // Show psxgpu version
)

type (
	CLI struct {
		Demo     Demo     `cmd:"" help:"Render the built-in scene and save a screenshot. (default command)" default:"true"`
		Adapters Adapters `cmd:"" help:"Probe the graphics adapter and print what was found."`
		Version  Version  `cmd:"" help:"Show psxgpu version."`

		Config string `help:"${config_help}" type:"path" placeholder:"FILE"`
		Log    string `help:"${log_help}" enum:"off,info,debug" default:"off"`

		mode mode
	}

	Demo struct {
		Renderer string `help:"Renderer override (auto|hardware|software)." placeholder:"NAME"`
		Frames   int    `help:"Number of frames to render." default:"120"`
		Output   string `help:"Screenshot file, .png or .bmp." type:"path" default:"psxgpu.png"`
		Geometry string `help:"${geometry_help}" enum:"window,internal,raw" default:"internal"`
		ShowVRAM bool   `name:"show-vram" help:"Scan out the whole VRAM instead of the display area."`
	}

	Adapters struct{}
	Version  struct{}
)

var vars = kong.Vars{
	"config_help":   "Settings file to use instead of the per-user one.",
	"log_help":      "Log verbosity on stderr.",
	"geometry_help": "Screenshot geometry: the presented window, the internal render size, or the raw scan-out.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("psxgpu"),
		kong.Description("PSX GPU render pipeline. github.com/yeager/psxgpu"),
		kong.UsageOnError(),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "adapters":
		cfg.mode = adaptersMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = demoMode
	}
	return cfg
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
