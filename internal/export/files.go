// Package export publishes completed capture cycles: dashboard documents,
// a KML map, and optional Kafka and chat notifications.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/wolfcreekpass/server/internal/services"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

const jsonContentType = "application/json"

// Index lists recent cycles for the dashboard
type Index struct {
	Cycles any `json:"cycles"`
	Count  int `json:"count"`
}

// FileExporter writes the cycle dashboard, the latest pointer and the cycle
// index to the backend's object store
type FileExporter struct {
	store      storage.Gateway
	prefix     string
	indexLimit int
}

// NewFileExporter creates a file exporter writing under prefix
func NewFileExporter(store storage.Gateway, prefix string, indexLimit int) *FileExporter {
	if indexLimit <= 0 {
		indexLimit = 200
	}
	return &FileExporter{store: store, prefix: prefix, indexLimit: indexLimit}
}

// Name identifies the exporter in cycle reports
func (e *FileExporter) Name() string { return "files" }

// CycleKey is the object key of a cycle's dashboard document
func (e *FileExporter) CycleKey(cycleID string) string {
	return e.key("cycle-" + strings.ReplaceAll(cycleID, ":", "-") + ".json")
}

// Export writes cycle-{id}.json, latest.json and index.json
func (e *FileExporter) Export(ctx context.Context, res *services.CycleResult) error {
	objects := e.store.Objects()
	dashboard, err := json.MarshalIndent(services.DashboardFromResult(res, e.store), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}

	cycleKey := e.CycleKey(res.CycleID())
	if err := objects.Put(ctx, cycleKey, dashboard, jsonContentType); err != nil {
		return fmt.Errorf("failed to write %s: %w", cycleKey, err)
	}
	if err := objects.Put(ctx, e.key("latest.json"), dashboard, jsonContentType); err != nil {
		return fmt.Errorf("failed to write latest.json: %w", err)
	}

	cycles, err := e.store.GetCycles(ctx, e.indexLimit)
	if err != nil {
		return fmt.Errorf("failed to load cycle index: %w", err)
	}
	index, err := json.MarshalIndent(Index{Cycles: cycles, Count: len(cycles)}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := objects.Put(ctx, e.key("index.json"), index, jsonContentType); err != nil {
		return fmt.Errorf("failed to write index.json: %w", err)
	}

	logging.Infow(ctx, "Exported cycle dashboard", "cycle", res.CycleID(), "key", cycleKey, "index_size", len(cycles))
	return nil
}

func (e *FileExporter) key(name string) string {
	if e.prefix == "" {
		return name
	}
	return path.Join(e.prefix, name)
}
