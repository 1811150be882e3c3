package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snapdiff/internal/fsutil"
	"snapdiff/internal/logutil"
)

var fixedMeta = fsutil.Metadata{
	Size:  11,
	Atime: fsutil.Timespec{Sec: 1600000001, Nsec: 111},
	Ctime: fsutil.Timespec{Sec: 1600000002, Nsec: 222},
	Mtime: fsutil.Timespec{Sec: 1600000003, Nsec: 333},
}

func fixedStatter(meta fsutil.Metadata) Statter {
	return StatterFunc(func(path string) (fsutil.Metadata, error) {
		return meta, nil
	})
}

// generate runs a Generator over the given serialized diff content and
// returns the parsed JSON documents in numeric order.
func generate(t *testing.T, serial string, batchSize int, statter Statter) []([]map[string]interface{}) {
	t.Helper()

	serialPath := filepath.Join(t.TempDir(), "serialized_diff")
	if err := os.WriteFile(serialPath, []byte(serial), 0644); err != nil {
		t.Fatal(err)
	}
	jsonDir := t.TempDir()

	g := &Generator{
		SnapDir:   "/streams/snapdiff",
		JSONDir:   jsonDir,
		Statter:   statter,
		BatchSize: batchSize,
		Logger:    logutil.NewDiscardLogger(),
	}
	if err := g.Generate(serialPath); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var docs []([]map[string]interface{})
	for i := 0; ; i++ {
		data, err := os.ReadFile(filepath.Join(jsonDir, fmt.Sprintf("%d.json", i)))
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		var doc []map[string]interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("document %d is not valid JSON: %v\n%s", i, err, data)
		}
		docs = append(docs, doc)
	}
	return docs
}

func TestDeleteEvent(t *testing.T) {
	t.Parallel()

	docs := generate(t, "FILE_DELETE\t/a/b.txt\n", 1000, fixedStatter(fixedMeta))
	if len(docs) != 1 || len(docs[0]) != 1 {
		t.Fatalf("expected one document with one event, got %v", docs)
	}
	ev := docs[0][0]
	if ev["type"] != "delete" || ev["object_type"] != "file" || ev["path"] != "/a/b.txt" {
		t.Errorf("delete event = %v", ev)
	}
}

func TestLongPathRecord(t *testing.T) {
	t.Parallel()

	// The path alone exceeds bufio's 64 KiB default token size.
	longPath := "/" + strings.Repeat("d/", 50<<10) + "leaf"
	docs := generate(t, "FILE_DELETE\t"+longPath+"\n", 1000, fixedStatter(fixedMeta))
	if len(docs) != 1 || len(docs[0]) != 1 {
		t.Fatalf("expected one document with one event, got %d docs", len(docs))
	}
	if docs[0][0]["path"] != longPath {
		t.Error("long path not preserved in event")
	}
}

func TestDirDeleteEvent(t *testing.T) {
	t.Parallel()

	docs := generate(t, "DIR_DELETE\t/old/dir\n", 1000, fixedStatter(fixedMeta))
	ev := docs[0][0]
	if ev["object_type"] != "dir" {
		t.Errorf("object_type = %v, want dir", ev["object_type"])
	}
}

func TestRenameEvent(t *testing.T) {
	t.Parallel()

	docs := generate(t, "FILE_RENAME\t/old.txt\t/new.txt\n", 1000, fixedStatter(fixedMeta))
	ev := docs[0][0]
	if ev["type"] != "rename" || ev["path_old"] != "/old.txt" || ev["path_new"] != "/new.txt" {
		t.Errorf("rename event = %v", ev)
	}
}

func TestFileModifyEventFlags(t *testing.T) {
	t.Parallel()

	docs := generate(t, "FILE_MSX\t/a.txt\n", 1000, fixedStatter(fixedMeta))
	ev := docs[0][0]
	if ev["type"] != "file" {
		t.Errorf("type = %v, want file", ev["type"])
	}
	if ev["created"] != false || ev["modified"] != true || ev["stat"] != true || ev["xattr"] != true {
		t.Errorf("flags wrong: %v", ev)
	}
	if ev["size"] != float64(11) {
		t.Errorf("size = %v, want 11", ev["size"])
	}
	mtime, ok := ev["mtime"].(map[string]interface{})
	if !ok {
		t.Fatalf("mtime missing: %v", ev)
	}
	if mtime["sec"] != float64(1600000003) || mtime["nsec"] != float64(333) {
		t.Errorf("mtime = %v", mtime)
	}
	if ev["path"] != "/a.txt" {
		t.Errorf("path = %v", ev["path"])
	}
}

func TestDirCreateEvent(t *testing.T) {
	t.Parallel()

	docs := generate(t, "DIR_C\t/newdir\n", 1000, fixedStatter(fixedMeta))
	ev := docs[0][0]
	if ev["type"] != "dir" || ev["created"] != true || ev["modified"] != false {
		t.Errorf("dir create event = %v", ev)
	}
}

func TestSymlinkCreatedEvent(t *testing.T) {
	t.Parallel()

	docs := generate(t, "SYM_CM\t/a/link\t/a/target\n", 1000, fixedStatter(fixedMeta))
	ev := docs[0][0]
	if ev["type"] != "symlink" {
		t.Errorf("type = %v, want symlink", ev["type"])
	}
	if ev["created"] != true {
		t.Errorf("created = %v, want true", ev["created"])
	}
	if ev["target"] != "/a/target" {
		t.Errorf("target = %v, want /a/target", ev["target"])
	}
	if ev["stat"] != false {
		t.Errorf("stat = %v, want false", ev["stat"])
	}
	if ev["size"] != float64(11) {
		t.Errorf("metadata missing: %v", ev)
	}
}

func TestSymlinkModifiedHasNoTarget(t *testing.T) {
	t.Parallel()

	docs := generate(t, "SYM_S\t/a/link\n", 1000, fixedStatter(fixedMeta))
	ev := docs[0][0]
	if ev["created"] != false {
		t.Errorf("created = %v, want false", ev["created"])
	}
	if _, ok := ev["target"]; ok {
		t.Error("target present on non-created symlink event")
	}
	if ev["stat"] != true {
		t.Errorf("stat = %v, want true", ev["stat"])
	}
}

func TestSymlinkDeleteEvent(t *testing.T) {
	t.Parallel()

	docs := generate(t, "SYM_DELETE\t/a/link\n", 1000, fixedStatter(fixedMeta))
	ev := docs[0][0]
	if ev["type"] != "delete" || ev["object_type"] != "symlink" || ev["path"] != "/a/link" {
		t.Errorf("symlink delete event = %v", ev)
	}
}

func TestUnknownEntitySkipped(t *testing.T) {
	t.Parallel()

	serial := "SOCKET_C\t/weird\nFILE_DELETE\t/kept\n"
	docs := generate(t, serial, 1000, fixedStatter(fixedMeta))
	if len(docs) != 1 || len(docs[0]) != 1 {
		t.Fatalf("expected exactly one event, got %v", docs)
	}
	if docs[0][0]["path"] != "/kept" {
		t.Errorf("kept event = %v", docs[0][0])
	}
}

func TestStatFailureDegradesEvent(t *testing.T) {
	t.Parallel()

	failing := StatterFunc(func(path string) (fsutil.Metadata, error) {
		return fsutil.Metadata{}, errors.New("no such file")
	})

	docs := generate(t, "FILE_C\t/gone.txt\n", 1000, failing)
	ev := docs[0][0]
	if ev["type"] != "file" || ev["created"] != true {
		t.Errorf("event not emitted on stat failure: %v", ev)
	}
	for _, field := range []string{"size", "atime", "ctime", "mtime", "path"} {
		if _, ok := ev[field]; ok {
			t.Errorf("field %q present despite stat failure", field)
		}
	}
}

func TestBatchSizing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		records   int
		batchSize int
		wantDocs  int
		wantLast  int
	}{
		{name: "single partial batch", records: 3, batchSize: 5, wantDocs: 1, wantLast: 3},
		{name: "exact multiple", records: 10, batchSize: 5, wantDocs: 2, wantLast: 5},
		{name: "one over", records: 11, batchSize: 5, wantDocs: 3, wantLast: 1},
		{name: "single record", records: 1, batchSize: 5, wantDocs: 1, wantLast: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			for i := 0; i < tt.records; i++ {
				fmt.Fprintf(&sb, "FILE_DELETE\t/f%d\n", i)
			}

			docs := generate(t, sb.String(), tt.batchSize, fixedStatter(fixedMeta))
			if len(docs) != tt.wantDocs {
				t.Fatalf("got %d documents, want %d", len(docs), tt.wantDocs)
			}
			if got := len(docs[len(docs)-1]); got != tt.wantLast {
				t.Errorf("last document has %d events, want %d", got, tt.wantLast)
			}
			for i := 0; i < len(docs)-1; i++ {
				if len(docs[i]) != tt.batchSize {
					t.Errorf("document %d has %d events, want %d", i, len(docs[i]), tt.batchSize)
				}
			}
		})
	}
}

func TestEmptySerializedDiff(t *testing.T) {
	t.Parallel()

	docs := generate(t, "", 1000, fixedStatter(fixedMeta))
	if len(docs) != 0 {
		t.Errorf("expected no documents for empty input, got %d", len(docs))
	}
}

func TestMalformedRenameFatal(t *testing.T) {
	t.Parallel()

	serialPath := filepath.Join(t.TempDir(), "serialized_diff")
	if err := os.WriteFile(serialPath, []byte("FILE_RENAME\t/only-old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	g := &Generator{
		SnapDir:   "/s",
		JSONDir:   t.TempDir(),
		Statter:   fixedStatter(fixedMeta),
		BatchSize: 1000,
		Logger:    logutil.NewDiscardLogger(),
	}
	if err := g.Generate(serialPath); err == nil {
		t.Fatal("Generate should fail for a rename record without a target")
	}
}

func TestLivePathMapping(t *testing.T) {
	t.Parallel()

	var seen string
	statter := StatterFunc(func(path string) (fsutil.Metadata, error) {
		seen = path
		return fixedMeta, nil
	})

	generate(t, "FILE_C\t/data/file.txt\n", 1000, statter)

	// Two directory levels above the stream root.
	want := filepath.Join("/streams/snapdiff", "..", "..", "/data/file.txt")
	want = filepath.Clean(want)
	if seen != want {
		t.Errorf("stat path = %q, want %q", seen, want)
	}
}
