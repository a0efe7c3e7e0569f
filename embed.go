package site

import "embed"

// EmbeddedAssets holds the assets every page relies on: the lazy image
// loader and the base stylesheet. They are served under /assets/.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
