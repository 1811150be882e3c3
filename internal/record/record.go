// Package record provides parsing utilities shared by the diff pipeline
// stages. A raw diff record is one whitespace-delimited line of the form:
//
//	<level> <objectId> <payload tokens...>
//
// where level is a signed ordering key, objectId is an opaque token that is
// not propagated downstream, and the payload describes one filesystem
// change. Two reserved payloads, EOB and EOF, are batch/stream boundary
// sentinels rather than data.
package record

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// SentinelEOB marks the end of one stream page; more pages follow.
	SentinelEOB = "EOB"
	// SentinelEOF marks the end of the whole diff stream.
	SentinelEOF = "EOF"

	// LevelOffset is added to the signed level token to produce a
	// non-negative bucket key. It is a property of the upstream wire
	// format (levels span [-513, ...)), not a tunable.
	LevelOffset = 513

	// MaxLineBytes caps a single record line across all pipeline stages.
	// Payloads carry filesystem paths, so lines can exceed bufio's 64 KiB
	// default token size.
	MaxLineBytes = 4 << 20
)

// Tokens splits a raw diff line into its whitespace-delimited tokens.
func Tokens(line string) []string {
	return strings.Fields(line)
}

// NormalizeLevel parses a signed level token and shifts it into the
// non-negative bucket key space.
func NormalizeLevel(tok string) (int, error) {
	level, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid level token %q: %w", tok, err)
	}
	return level + LevelOffset, nil
}

// Payload reassembles the payload portion of a tokenized record (everything
// past the level and object id), tab-joined. Returns the empty string for
// records with no payload tokens.
func Payload(tokens []string) string {
	if len(tokens) <= 2 {
		return ""
	}
	return strings.Join(tokens[2:], "\t")
}

// IsSentinel reports whether a payload is exactly a batch or stream
// boundary marker.
func IsSentinel(payload string) bool {
	return payload == SentinelEOB || payload == SentinelEOF
}
