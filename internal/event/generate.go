package event

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"snapdiff/internal/fsutil"
	"snapdiff/internal/jsonval"
	"snapdiff/internal/record"
)

// Generator reads the serialized diff and emits numbered JSON documents,
// each holding up to BatchSize change events.
type Generator struct {
	// SnapDir is the snapshot stream root. Live paths for enrichment
	// sit two directory levels above it.
	SnapDir string
	// JSONDir receives the numbered output documents.
	JSONDir string

	Statter   Statter
	BatchSize int
	Logger    *slog.Logger
}

// NewGenerator creates a Generator using the platform stat capability.
func NewGenerator(snapDir, jsonDir string, batchSize int, logger *slog.Logger) *Generator {
	return &Generator{
		SnapDir:   snapDir,
		JSONDir:   jsonDir,
		Statter:   StatterFunc(fsutil.Lstat),
		BatchSize: batchSize,
		Logger:    logger,
	}
}

// Generate reads serialPath and writes one JSON document per batch of
// classifiable records. Stat failures are logged and degrade single
// events; malformed records fail the stage.
func (g *Generator) Generate(serialPath string) error {
	f, err := os.Open(serialPath)
	if err != nil {
		g.Logger.Error("Could not open file", "path", serialPath, "error", err)
		return fmt.Errorf("open serialized diff %s: %w", serialPath, err)
	}
	defer f.Close()

	g.Logger.Info("JSONizing diffs", "path", serialPath)

	docNum := 0
	items := jsonval.NewArray()

	flush := func() error {
		if items.Len() == 0 {
			return nil
		}
		path := filepath.Join(g.JSONDir, strconv.Itoa(docNum)+".json")
		out, err := os.Create(path)
		if err != nil {
			g.Logger.Error("Could not open file", "path", path, "error", err)
			return fmt.Errorf("create json document %s: %w", path, err)
		}
		g.Logger.Info("Writing to json file", "path", path)
		if err := items.Encode(out); err != nil {
			out.Close()
			return fmt.Errorf("write json document %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close json document %s: %w", path, err)
		}
		docNum++
		items = jsonval.NewArray()
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), record.MaxLineBytes)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}

		item, err := g.mapRecord(tokens)
		if err != nil {
			return err
		}
		if item == nil {
			// Unknown entity type: permissive passthrough.
			continue
		}

		items.Append(item)
		if items.Len() >= g.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		g.Logger.Error("Error reading file", "path", serialPath, "error", err)
		return fmt.Errorf("scan serialized diff %s: %w", serialPath, err)
	}

	return flush()
}

// mapRecord classifies one serialized record into a change event object.
// Returns nil for entity types this tool does not know.
func (g *Generator) mapRecord(tokens []string) (*jsonval.Map, error) {
	entityType, opType := classify(tokens[0])

	switch entityType {
	case entityFile, entityDir:
		return g.mapFileOrDir(entityType, opType, tokens)
	case entitySymlink:
		return g.mapSymlink(opType, tokens)
	default:
		return nil, nil
	}
}

func (g *Generator) mapFileOrDir(entityType, opType string, tokens []string) (*jsonval.Map, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("malformed %s record: %q", entityType, strings.Join(tokens, " "))
	}
	path := tokens[1]
	objectType := "file"
	if entityType == entityDir {
		objectType = "dir"
	}

	item := jsonval.NewMap()
	switch opType {
	case opDelete:
		item.Set("type", jsonval.String("delete"))
		item.Set("object_type", jsonval.String(objectType))
		item.Set("path", jsonval.String(path))

	case opRename:
		if len(tokens) < 3 {
			return nil, fmt.Errorf("rename record lacks target path: %q", strings.Join(tokens, " "))
		}
		item.Set("type", jsonval.String("rename"))
		item.Set("path_old", jsonval.String(path))
		item.Set("path_new", jsonval.String(tokens[2]))

	default:
		if !addMetadata(item, g.Statter, g.livePath(path), path) {
			g.Logger.Error("Could not stat file", "path", path)
		}
		item.Set("type", jsonval.String(objectType))
		item.Set("created", jsonval.Bool(opFlag(opType, 'C')))
		item.Set("modified", jsonval.Bool(opFlag(opType, 'M')))
		item.Set("stat", jsonval.Bool(opFlag(opType, 'S')))
		item.Set("xattr", jsonval.Bool(opFlag(opType, 'X')))
	}
	return item, nil
}

func (g *Generator) mapSymlink(opType string, tokens []string) (*jsonval.Map, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("malformed SYM record: %q", strings.Join(tokens, " "))
	}
	path := tokens[1]

	item := jsonval.NewMap()
	if opType == opDelete {
		item.Set("type", jsonval.String("delete"))
		item.Set("object_type", jsonval.String("symlink"))
		item.Set("path", jsonval.String(path))
		return item, nil
	}

	if !addMetadata(item, g.Statter, g.livePath(path), path) {
		g.Logger.Error("Could not stat file", "path", path)
	}
	item.Set("type", jsonval.String("symlink"))
	if opFlag(opType, 'C') {
		if len(tokens) < 3 {
			return nil, fmt.Errorf("created symlink record lacks target: %q", strings.Join(tokens, " "))
		}
		item.Set("created", jsonval.Bool(true))
		item.Set("target", jsonval.String(tokens[2]))
	} else {
		item.Set("created", jsonval.Bool(false))
	}
	item.Set("stat", jsonval.Bool(opFlag(opType, 'S')))
	return item, nil
}

// livePath maps a diff-relative path back onto the original filesystem
// location, two directory levels above the stream root.
func (g *Generator) livePath(path string) string {
	return filepath.Join(g.SnapDir, "..", "..", path)
}
