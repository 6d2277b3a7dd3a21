package promptgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultReloadDebounce groups bursts of file events into a single reload.
const defaultReloadDebounce = 250 * time.Millisecond

// Catalog holds the graph definitions available to new tasks, keyed by
// definition id. Definitions are validated when they enter the catalog; an
// invalid definition stays listed as unavailable and Graph returns its load
// error, so no task can start from it.
//
// Definitions added with Register survive directory reloads and take
// precedence over a file with the same id.
//
// Catalog is safe for concurrent use.
type Catalog struct {
	directory string
	debounce  time.Duration
	logger    *slog.Logger

	mutex      sync.RWMutex
	files      catalogLayer
	registered catalogLayer
	// graphs and invalid are files overlaid with registered.
	graphs  map[string]*PromptGraph
	invalid map[string]error
}

// catalogLayer is one source of definitions, valid or not, by id.
type catalogLayer struct {
	graphs  map[string]*PromptGraph
	invalid map[string]error
}

func newCatalogLayer() catalogLayer {
	return catalogLayer{graphs: make(map[string]*PromptGraph), invalid: make(map[string]error)}
}

func (layer catalogLayer) set(definitionID string, graph *PromptGraph, err error) {
	if err != nil {
		delete(layer.graphs, definitionID)
		layer.invalid[definitionID] = err
		return
	}
	delete(layer.invalid, definitionID)
	layer.graphs[definitionID] = graph
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogLogger sets the logger used for reload and watch events.
func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(catalog *Catalog) {
		catalog.logger = logger
	}
}

// WithReloadDebounce overrides the delay between a file event and the reload
// it triggers.
func WithReloadDebounce(debounce time.Duration) CatalogOption {
	return func(catalog *Catalog) {
		catalog.debounce = debounce
	}
}

// NewCatalog creates a catalog. When directory is non-empty every definition
// file in it is loaded; the returned error joins the problems of invalid files
// while the valid ones remain available.
func NewCatalog(directory string, opts ...CatalogOption) (*Catalog, error) {
	catalog := &Catalog{
		directory:  directory,
		debounce:   defaultReloadDebounce,
		logger:     slog.Default(),
		files:      newCatalogLayer(),
		registered: newCatalogLayer(),
		graphs:     make(map[string]*PromptGraph),
		invalid:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(catalog)
	}

	if directory == "" {
		return catalog, nil
	}
	return catalog, catalog.Reload()
}

// Register validates a definition and adds (or replaces) it in the catalog.
func (catalog *Catalog) Register(definition *Definition) error {
	graph, err := definition.Build()

	catalog.mutex.Lock()
	defer catalog.mutex.Unlock()

	catalog.registered.set(definition.ID, graph, err)
	catalog.mergeLocked()
	return err
}

// mergeLocked rebuilds the visible definitions from both layers.
func (catalog *Catalog) mergeLocked() {
	graphs := make(map[string]*PromptGraph, len(catalog.files.graphs)+len(catalog.registered.graphs))
	invalid := make(map[string]error, len(catalog.files.invalid)+len(catalog.registered.invalid))

	for _, layer := range []catalogLayer{catalog.files, catalog.registered} {
		for definitionID, graph := range layer.graphs {
			delete(invalid, definitionID)
			graphs[definitionID] = graph
		}
		for definitionID, err := range layer.invalid {
			delete(graphs, definitionID)
			invalid[definitionID] = err
		}
	}

	catalog.graphs = graphs
	catalog.invalid = invalid
}

// Reload re-reads the catalog directory, replacing the definitions loaded
// from files. Registered definitions are kept.
func (catalog *Catalog) Reload() error {
	if catalog.directory == "" {
		return nil
	}

	entries, err := os.ReadDir(catalog.directory)
	if err != nil {
		return fmt.Errorf("error reading definitions directory: %w", err)
	}

	files := newCatalogLayer()
	var loadErrors []error

	for _, entry := range entries {
		if entry.IsDir() || !IsDefinitionFile(entry.Name()) {
			continue
		}

		path := filepath.Join(catalog.directory, entry.Name())
		definitionID := DefinitionID(path)

		graph, loadErr := loadGraphFile(path)
		if _, duplicated := files.graphs[definitionID]; duplicated && loadErr == nil {
			// The first file keeps the id.
			loadErrors = append(loadErrors, fmt.Errorf("definition %q declared by more than one file", definitionID))
			continue
		}
		if loadErr != nil {
			loadErrors = append(loadErrors, loadErr)
		}
		files.set(definitionID, graph, loadErr)
	}

	catalog.mutex.Lock()
	catalog.files = files
	catalog.mergeLocked()
	catalog.mutex.Unlock()

	catalog.logger.Info("graph definitions loaded",
		slog.String("directory", catalog.directory),
		slog.Int("valid", len(files.graphs)),
		slog.Int("invalid", len(files.invalid)),
	)

	return errors.Join(loadErrors...)
}

func loadGraphFile(path string) (*PromptGraph, error) {
	definition, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return definition.Build()
}

// List returns the ids of all valid definitions, sorted.
func (catalog *Catalog) List() []string {
	catalog.mutex.RLock()
	defer catalog.mutex.RUnlock()

	definitionIDs := make([]string, 0, len(catalog.graphs))
	for definitionID := range catalog.graphs {
		definitionIDs = append(definitionIDs, definitionID)
	}
	slices.Sort(definitionIDs)
	return definitionIDs
}

// Graph returns the validated graph for a definition id.
func (catalog *Catalog) Graph(definitionID string) (*PromptGraph, error) {
	catalog.mutex.RLock()
	defer catalog.mutex.RUnlock()

	if graph, exists := catalog.graphs[definitionID]; exists {
		return graph, nil
	}
	if loadErr, exists := catalog.invalid[definitionID]; exists {
		return nil, loadErr
	}
	return nil, fmt.Errorf("%w: %q", ErrDefinitionNotFound, definitionID)
}

// Watch reloads the catalog whenever a definition file in the directory is
// created, written, renamed or removed. It blocks until ctx is done.
func (catalog *Catalog) Watch(ctx context.Context) error {
	if catalog.directory == "" {
		return errors.New("catalog has no directory to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating definitions watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			catalog.logger.Warn("failed to close definitions watcher", slog.String("error", closeErr.Error()))
		}
	}()

	if err := watcher.Add(catalog.directory); err != nil {
		return fmt.Errorf("error watching definitions directory: %w", err)
	}

	var reloadTimer *time.Timer
	reloadSignal := make(chan struct{}, 1)
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, open := <-watcher.Events:
			if !open {
				return nil
			}
			if !IsDefinitionFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(catalog.debounce, func() {
				select {
				case reloadSignal <- struct{}{}:
				default:
				}
			})

		case <-reloadSignal:
			if reloadErr := catalog.Reload(); reloadErr != nil {
				catalog.logger.Warn("graph definitions reloaded with errors", slog.String("error", reloadErr.Error()))
			}

		case watchErr, open := <-watcher.Errors:
			if !open {
				return nil
			}
			catalog.logger.Warn("definitions watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
