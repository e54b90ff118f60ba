package runtime

import "embed"

// CensoredWords holds the per-language blacklist dictionaries, one .txt
// file per language, embedded so the binary needs no data files on disk.
//
//go:embed censored/*
var CensoredWords embed.FS
