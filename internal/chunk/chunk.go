// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chunk splits reply text into stream-sized pieces for token events.
package chunk

import "strings"

// DefaultMaxLen is the soft chunk size in bytes. Chunks only break at word
// boundaries, so a chunk may exceed this when a single word is longer.
const DefaultMaxLen = 40

// Split breaks text into word-respecting chunks of roughly maxLen bytes.
// Every chunk except the last carries a trailing space, so concatenating all
// chunks reproduces the input byte for byte. Words are never split: an
// over-long word becomes its own over-long chunk. Empty input yields no
// chunks.
func Split(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if maxLen < 1 {
		maxLen = DefaultMaxLen
	}

	var chunks []string
	var buf []string
	count := 0

	for _, word := range words(text) {
		sep := 0
		if len(buf) > 0 {
			sep = 1
		}
		if count+len(word)+sep > maxLen && len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, " ")+" ")
			buf = []string{word}
			count = len(word)
			continue
		}
		buf = append(buf, word)
		count += len(word) + sep
	}
	if final := strings.Join(buf, " "); final != "" {
		chunks = append(chunks, final)
	}
	return chunks
}

// words splits on single spaces only. Runs of spaces produce empty words,
// which Join restores, keeping the round-trip exact.
func words(text string) []string {
	return strings.Split(text, " ")
}
