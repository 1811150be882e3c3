// Package event translates the serialized diff into structured change
// events and writes them out as batched JSON documents. Records are
// classified by their entityType_opCode tag; non-destructive records are
// enriched with live filesystem metadata through the Statter capability.
package event

import (
	"strings"

	"snapdiff/internal/fsutil"
	"snapdiff/internal/jsonval"
)

// Entity type tags of the diff record format.
const (
	entityFile    = "FILE"
	entityDir     = "DIR"
	entitySymlink = "SYM"
)

// Operation codes with fixed meaning. Any other code is a combination of
// the single-character change flags tested by opFlag.
const (
	opDelete = "DELETE"
	opRename = "RENAME"
)

// Statter is the "get file metadata" capability used for event
// enrichment. Implementations must not follow a trailing symlink.
type Statter interface {
	Stat(path string) (fsutil.Metadata, error)
}

// StatterFunc adapts a function to the Statter interface.
type StatterFunc func(path string) (fsutil.Metadata, error)

// Stat calls f.
func (f StatterFunc) Stat(path string) (fsutil.Metadata, error) {
	return f(path)
}

// classify splits an entityType_opCode tag on its first underscore.
func classify(tag string) (entityType, opType string) {
	i := strings.Index(tag, "_")
	if i < 0 {
		return tag, ""
	}
	return tag[:i], tag[i+1:]
}

// opFlag reports whether opType carries the given single-character change
// flag (C, M, S, or X).
func opFlag(opType string, flag byte) bool {
	return strings.IndexByte(opType, flag) >= 0
}

// timeMap renders a Timespec as a {sec, nsec} object.
func timeMap(ts fsutil.Timespec) *jsonval.Map {
	m := jsonval.NewMap()
	m.Set("sec", jsonval.Number(ts.Sec))
	m.Set("nsec", jsonval.Number(ts.Nsec))
	return m
}

// addMetadata enriches item with size, timestamps, and path from the live
// filesystem. Returns false when the stat lookup failed; the caller emits
// the event without the metadata fields.
func addMetadata(item *jsonval.Map, statter Statter, livePath, path string) bool {
	meta, err := statter.Stat(livePath)
	if err != nil {
		return false
	}
	item.Set("size", jsonval.Number(meta.Size))
	item.Set("atime", timeMap(meta.Atime))
	item.Set("ctime", timeMap(meta.Ctime))
	item.Set("mtime", timeMap(meta.Mtime))
	item.Set("path", jsonval.String(path))
	return true
}
