package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/vibe-phase/internal/genmap"
)

// MapCache manages a gob-serialized genetic map on disk:
//
//	{dir}/genetic_map.gob       (serialized map rows)
//	{dir}/genetic_map.gob.meta  (source file fingerprint)
type MapCache struct {
	dir string // cache directory (e.g. ~/.vibe-phase)
}

// NewMapCache creates a genetic map cache for the given directory.
func NewMapCache(dir string) *MapCache {
	return &MapCache{dir: dir}
}

func (mc *MapCache) gobPath() string {
	return filepath.Join(mc.dir, "genetic_map.gob")
}

func (mc *MapCache) metaPath() string {
	return filepath.Join(mc.dir, "genetic_map.gob.meta")
}

// Valid checks whether the cached map was built from the given source file.
func (mc *MapCache) Valid(src FileFingerprint) bool {
	meta, err := mc.readMeta()
	if err != nil {
		return false
	}

	size, err := strconv.ParseInt(meta["map_size"], 10, 64)
	if err != nil {
		return false
	}
	modTime, err := time.Parse(time.RFC3339Nano, meta["map_modtime"])
	if err != nil {
		return false
	}
	cached := FileFingerprint{Path: meta["map_path"], Size: size, ModTime: modTime}
	if !cached.Same(src) {
		return false
	}

	if _, err := os.Stat(mc.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the serialized map from disk.
func (mc *MapCache) Load() (*genmap.Map, error) {
	f, err := os.Open(mc.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open map cache: %w", err)
	}
	defer f.Close()

	var table map[int][]genmap.Point
	if err := gob.NewDecoder(f).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode map cache: %w", err)
	}
	return genmap.FromTable(table), nil
}

// Write serializes m to disk and records the source fingerprint.
func (mc *MapCache) Write(m *genmap.Map, src FileFingerprint) error {
	if err := os.MkdirAll(mc.dir, 0755); err != nil {
		return fmt.Errorf("create map cache directory: %w", err)
	}

	f, err := os.Create(mc.gobPath())
	if err != nil {
		return fmt.Errorf("create map cache: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(m.Table()); err != nil {
		f.Close()
		os.Remove(mc.gobPath())
		return fmt.Errorf("encode map cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close map cache: %w", err)
	}

	return mc.writeMeta(src)
}

// Clear removes the cached map files.
func (mc *MapCache) Clear() {
	os.Remove(mc.gobPath())
	os.Remove(mc.metaPath())
}

// LoadMap returns the genetic map at path, served from the cache when the
// cached copy matches the file on disk and refreshed otherwise.
func (mc *MapCache) LoadMap(path string) (*genmap.Map, bool, error) {
	src, err := StatFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("open genetic map: %w", err)
	}
	if mc.Valid(src) {
		if m, err := mc.Load(); err == nil {
			return m, true, nil
		}
	}

	m, err := genmap.Load(path)
	if err != nil {
		return nil, false, err
	}
	if err := mc.Write(m, src); err != nil {
		return m, false, err
	}
	return m, false, nil
}

func (mc *MapCache) writeMeta(src FileFingerprint) error {
	lines := []string{
		"map_path=" + src.Path,
		"map_size=" + strconv.FormatInt(src.Size, 10),
		"map_modtime=" + src.ModTime.UTC().Format(time.RFC3339Nano),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(mc.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (mc *MapCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(mc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
