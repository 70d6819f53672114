// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import _ "embed"

// Embedded WGSL shader sources.

//go:embed shaders/blit.wgsl
var blitShaderSource string
