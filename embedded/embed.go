// Package embedded provides the core configuration defaults and bundled
// packs compiled into the edison binary, used as the bottom layer of the
// config resolver so the tool works with zero on-disk configuration.
package embedded

import "embed"

// CoreConfigYAML is the core default configuration tree.
//
//go:embed config/core.yaml
var CoreConfigYAML []byte

// PacksFS contains every bundled pack, one directory per pack name under
// packs/<name>/pack.yaml, plus that pack's composition content (e.g.
// packs/<name>/agents/*.md and packs/<name>/agents/overlays/*.md).
//
//go:embed all:packs
var PacksFS embed.FS

// ContentFS contains the core (bundled, not pack-specific) composition
// content, one directory per content type: content/agents/*.md,
// content/validators/*.md, and so on.
//
//go:embed all:content
var ContentFS embed.FS

// CoreRulesYAML is the core rule registry merged underneath any active
// pack's and the project's own rules/registry.yml.
//
//go:embed rules/registry.yml
var CoreRulesYAML []byte
