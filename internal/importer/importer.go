package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/engine"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/metrics"
	"github.com/roach88/stemma/internal/uid"
)

// AudioExtensions are the file extensions picked up by scans.
var AudioExtensions = map[string]bool{
	".wav":  true,
	".flac": true,
	".mp3":  true,
	".ogg":  true,
	".aif":  true,
	".aiff": true,
}

// IsAudioFile reports whether path has a recognized audio extension.
func IsAudioFile(path string) bool {
	return AudioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Options configures an Importer.
type Options struct {
	Runner  *engine.Runner
	Hasher  uid.Generator
	Logger  *slog.Logger
	Workers int

	// NewID names new set nodes. Defaults to UUIDv7.
	NewID func() string
}

// Importer adds imported artifacts to a store.
type Importer struct {
	store   *graph.Store
	runner  *engine.Runner
	hasher  uid.Generator
	logger  *slog.Logger
	workers int
	newID   func() string
}

// New binds an importer to st.
func New(st *graph.Store, opts Options) *Importer {
	im := &Importer{
		store:   st,
		runner:  opts.Runner,
		hasher:  opts.Hasher,
		logger:  opts.Logger,
		workers: opts.Workers,
		newID:   opts.NewID,
	}
	if im.runner == nil {
		im.runner = engine.NewRunner(nil, im.hasher, im.logger)
	}
	if im.hasher == nil {
		im.hasher = uid.NewXXH3()
	}
	if im.logger == nil {
		im.logger = slog.Default()
	}
	if im.workers <= 0 {
		im.workers = 4
	}
	if im.newID == nil {
		im.newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	return im
}

// ExternalSourceName is the node name of the external source at path.
func ExternalSourceName(absPath string) string {
	return "external_" + pathID(absPath)
}

// FoundAudioName is the node name of a scanned audio file.
func FoundAudioName(absPath string) string {
	return "found_" + pathID(absPath)
}

func pathID(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.Clean(absPath))).String()
}

// RegisterModel computes the identity of a checkpoint and returns the model
// node without adding it to the graph.
func (im *Importer) RegisterModel(ctx context.Context, engineName, name, checkpointPath, configPath string) (*element.Model, error) {
	const op = "register model"
	if name == "" {
		return nil, graph.Invalid(op, name, "model name is required")
	}
	ckpt, err := filepath.Abs(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := os.Stat(ckpt); err != nil {
		return nil, graph.NotFound(op, name, fmt.Sprintf("checkpoint %s not found", checkpointPath))
	}
	cfg := ""
	if configPath != "" {
		if cfg, err = filepath.Abs(configPath); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	reg, err := im.runner.RegisterModel(ctx, engineName, name, ckpt, cfg)
	if err != nil {
		return nil, err
	}

	m := &element.Model{
		Base: element.NewBase(element.KindModel, im.store.Now().Unix()),
		Artifact: element.Artifact{
			UID:        reg.Identity.UID,
			UIDType:    reg.Identity.Type,
			UIDVersion: reg.Identity.Version,
			Name:       name,
			Path:       im.store.Rel(ckpt),
		},
		Engine: reg.Engine,
	}
	if cfg != "" {
		m.ConfigPath = im.store.Rel(cfg)
	}
	return m, nil
}

// ImportModel registers a checkpoint and adds the model node.
func (im *Importer) ImportModel(ctx context.Context, engineName, name, checkpointPath, configPath string) (*element.Model, error) {
	if im.store.HasNode(name) {
		return nil, graph.Invalid("import model", name, "node already exists")
	}
	m, err := im.RegisterModel(ctx, engineName, name, checkpointPath, configPath)
	if err != nil {
		return nil, err
	}
	if err := im.store.AddNode(name, m); err != nil {
		return nil, err
	}
	im.logger.Info("model imported", "model", name, "engine", m.Engine, "uid", m.UID)
	return m, nil
}

// AddExternalSource creates the source node for dir and scans it. Returns
// the source name and the names of the audio nodes found.
func (im *Importer) AddExternalSource(ctx context.Context, dir, alias string) (string, []string, error) {
	const op = "add external source"
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, graph.NotFound(op, dir, "source directory not found")
	}
	if !info.IsDir() {
		return "", nil, graph.Invalid(op, dir, "source is not a directory")
	}

	name := ExternalSourceName(abs)
	if im.store.HasNode(name) {
		return "", nil, graph.Invalid(op, name, "source already added")
	}
	src := &element.ExternalSource{
		Base:  element.NewBase(element.KindExternal, im.store.Now().Unix()),
		Path:  abs,
		Alias: alias,
	}
	if err := im.store.AddNode(name, src); err != nil {
		return "", nil, err
	}
	added, err := im.ScanExternalSource(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return name, added, nil
}

// ScanExternalSource rescans the directory of source name and records the
// scan time on it.
func (im *Importer) ScanExternalSource(ctx context.Context, name string) ([]string, error) {
	dir, err := im.SourceDir(name)
	if err != nil {
		return nil, err
	}
	added, err := im.ScanDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := im.store.UpdateAttributes(name, map[string]any{"last_scanned": im.store.Now().Unix()}); err != nil {
		return nil, err
	}
	return added, nil
}

// SourceDir returns the absolute directory of external source name.
func (im *Importer) SourceDir(name string) (string, error) {
	const op = "external source"
	el, ok := im.store.Node(name)
	if !ok {
		return "", graph.NotFound(op, name, "node not found")
	}
	src, ok := el.(*element.ExternalSource)
	if !ok {
		return "", graph.Invalid(op, name, fmt.Sprintf("%s node is not an external source", el.Kind()))
	}
	return im.store.Abs(src.Path), nil
}

type foundFile struct {
	path string
	uid  string
}

// ScanDir walks dir and adds every audio file not yet in the graph as a
// parentless audio node. Hidden directories are skipped. Files are hashed
// in parallel; nodes are added in path order.
func (im *Importer) ScanDir(ctx context.Context, dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var candidates []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			im.logger.Warn("scan: skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsAudioFile(path) {
			metrics.ScannedFiles.WithLabelValues("ignored").Inc()
			return nil
		}
		if _, known := im.store.NodeByPath(im.store.Rel(path)); known {
			metrics.ScannedFiles.WithLabelValues("known").Inc()
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return nil, graph.NotFound("scan dir", dir, err.Error())
	}

	found := make([]foundFile, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, path := range candidates {
		g.Go(func() error {
			sum, err := im.hashFile(gctx, path)
			if err != nil {
				metrics.ScannedFiles.WithLabelValues("failed").Inc()
				im.logger.Warn("scan: cannot hash file", "path", path, "error", err)
				return nil
			}
			found[i] = foundFile{path: path, uid: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := im.store.Now().Unix()
	var added []string
	for _, f := range found {
		if f.uid == "" {
			continue
		}
		name := FoundAudioName(f.path)
		a := &element.Audio{
			Base: element.NewBase(element.KindAudio, created),
			Artifact: element.Artifact{
				UID:        f.uid,
				UIDType:    im.hasher.Type(),
				UIDVersion: im.hasher.Version(),
				Alias:      strings.TrimSuffix(filepath.Base(f.path), filepath.Ext(f.path)),
				Path:       im.store.Rel(f.path),
			},
		}
		if err := im.store.AddNode(name, a); err != nil {
			return added, err
		}
		metrics.ScannedFiles.WithLabelValues("added").Inc()
		added = append(added, name)
	}
	im.logger.Info("directory scanned", "dir", abs, "added", len(added), "candidates", len(candidates))
	return added, nil
}

func (im *Importer) hashFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return im.hasher.FromReader(f)
}

// ImportAudioSet groups existing audio files under a new set node. Every
// path is checked before anything is added. Returns the set name and the
// audio node names in input order.
func (im *Importer) ImportAudioSet(ctx context.Context, alias string, paths []string) (string, []string, error) {
	const op = "import audio set"
	if alias == "" {
		return "", nil, graph.Invalid(op, "", "set alias is required")
	}
	if len(paths) == 0 {
		return "", nil, graph.Invalid(op, alias, "no audio files given")
	}

	abs := make([]string, len(paths))
	seen := make(map[string]bool, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", op, err)
		}
		if !IsAudioFile(a) {
			return "", nil, graph.Invalid(op, p, "not an audio file")
		}
		if _, err := os.Stat(a); err != nil {
			return "", nil, graph.NotFound(op, p, "audio file not found")
		}
		if seen[a] {
			return "", nil, graph.Invalid(op, p, "listed twice")
		}
		if owner, known := im.store.NodeByPath(im.store.Rel(a)); known {
			return "", nil, &graph.Error{Code: graph.ErrCodePathCollision, Op: op, Name: p, Message: fmt.Sprintf("already tracked as %q", owner)}
		}
		seen[a] = true
		abs[i] = a
	}

	uids := make([]string, len(abs))
	for i, p := range abs {
		sum, err := im.hashFile(ctx, p)
		if err != nil {
			return "", nil, fmt.Errorf("%s: hash %s: %w", op, p, err)
		}
		uids[i] = sum
	}

	created := im.store.Now().Unix()
	setName := "set_" + im.newID()
	if err := im.store.AddNode(setName, &element.Set{
		Base:  element.NewBase(element.KindSet, created),
		Alias: alias,
	}); err != nil {
		return "", nil, err
	}

	names := make([]string, len(abs))
	for i, p := range abs {
		names[i] = FoundAudioName(p)
		a := &element.Audio{
			Base: element.NewBase(element.KindAudio, created),
			Artifact: element.Artifact{
				UID:        uids[i],
				UIDType:    im.hasher.Type(),
				UIDVersion: im.hasher.Version(),
				Alias:      fmt.Sprintf("%s_%d", alias, i+1),
				Path:       im.store.Rel(p),
			},
			Parent:     setName,
			BatchIndex: i + 1,
		}
		if err := im.store.AddNode(names[i], a); err != nil {
			return "", nil, err
		}
	}
	im.logger.Info("audio set imported", "set", setName, "alias", alias, "files", len(names))
	return setName, names, nil
}
