package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/stemma/internal/element"
)

const (
	// StateFile is the project state file name under the project root.
	StateFile = "graph.json"

	// BackupDir holds timestamped copies of previous state files.
	BackupDir = "backups"

	// DefaultExportTarget is the export directory, relative to the root.
	DefaultExportTarget = "exports"
)

// state is the persisted shape of a project.
type state struct {
	ProjectName  string `json:"project_name"`
	ExportTarget string `json:"export_target"`
	Graph        View   `json:"graph"`
}

// Store is an open project: its root directory, metadata and graph.
type Store struct {
	*Graph

	root         string
	projectName  string
	exportTarget string
	violations   []Violation

	logger *slog.Logger
	now    func() time.Time
	strict bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the wall clock used for backup suffixes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithStrictIntegrity makes Open fail when the loaded graph violates an
// invariant instead of reporting the violations through Violations.
func WithStrictIntegrity() Option {
	return func(s *Store) { s.strict = true }
}

func newStore(root string, opts []Option) *Store {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	s := &Store{
		Graph:        New(),
		root:         root,
		exportTarget: DefaultExportTarget,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Open loads the project rooted at root. A missing directory is NOT_FOUND; a
// directory without a state file is NO_PROJECT.
func Open(root string, opts ...Option) (*Store, error) {
	const op = "open"
	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, NotFound(op, root, "project directory not found")
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, NotFound(op, root, "project root is not a directory")
	}

	raw, err := os.ReadFile(filepath.Join(root, StateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Code: ErrCodeNoProject, Op: op, Name: root, Message: "no project"}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}

	var st state
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&st); err != nil {
		return nil, &Error{Code: ErrCodeCorrupt, Op: op, Name: root, Message: "decode state file", Err: err}
	}
	g, err := FromView(st.Graph)
	if err != nil {
		return nil, &Error{Code: ErrCodeCorrupt, Op: op, Name: root, Message: "decode graph", Err: err}
	}

	s := newStore(root, opts)
	s.Graph = g
	s.projectName = st.ProjectName
	if st.ExportTarget != "" {
		s.exportTarget = st.ExportTarget
	}

	s.violations = g.CheckIntegrity()
	for _, v := range s.violations {
		s.logger.Error("integrity violation", "project", s.projectName, "node", v.Node, "reason", v.Message)
	}
	if s.strict {
		if err := integrityError(op, root, s.violations); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("project opened", "root", root, "nodes", g.Len(), "edges", len(g.edgeOrder))
	return s, nil
}

// Create initializes an empty project at root and persists it immediately.
// An existing project at root is not overwritten.
func Create(root, projectName string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(filepath.Join(root, StateFile)); err == nil {
		return nil, Invalid("create", root, "project already exists")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", root, err)
	}
	if projectName == "" {
		projectName = filepath.Base(root)
	}
	s := newStore(root, opts)
	s.projectName = projectName
	if err := s.Save(); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "root", root, "project", projectName)
	return s, nil
}

// Root returns the project root directory.
func (s *Store) Root() string { return s.root }

// ProjectName returns the stored project name.
func (s *Store) ProjectName() string { return s.projectName }

// ExportTarget returns the absolute export directory.
func (s *Store) ExportTarget() string {
	if filepath.IsAbs(s.exportTarget) {
		return s.exportTarget
	}
	return filepath.Join(s.root, s.exportTarget)
}

// SetExportTarget changes the export directory. Relative paths resolve
// against the project root.
func (s *Store) SetExportTarget(path string) {
	s.exportTarget = path
}

// Violations returns the integrity violations found when the project was
// opened.
func (s *Store) Violations() []Violation {
	return s.violations
}

// Now returns the store's wall clock time.
func (s *Store) Now() time.Time { return s.now() }

// Save backs up the current state file and atomically writes the new state.
func (s *Store) Save() error {
	statePath := filepath.Join(s.root, StateFile)

	backup, err := s.backupState(statePath)
	if err != nil {
		return fmt.Errorf("save: backup: %w", err)
	}

	data, err := json.MarshalIndent(state{
		ProjectName:  s.projectName,
		ExportTarget: s.exportTarget,
		Graph:        s.View(ModeFull),
	}, "", "    ")
	if err != nil {
		return fmt.Errorf("save: encode: %w", err)
	}
	if err := writeFileAtomicDurable(statePath, data, 0o644); err != nil {
		return fmt.Errorf("save: write: %w", err)
	}
	s.logger.Debug("project saved", "path", statePath, "backup", backup, "nodes", s.Len())
	return nil
}

// backupState copies the existing state file into the backup directory as
// graph.json_{unix}. Same-second saves get an extra _{n} suffix so no backup
// is ever overwritten. Returns "" when there is nothing to back up.
func (s *Store) backupState(statePath string) (string, error) {
	src, err := os.ReadFile(statePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, BackupDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s_%d", StateFile, s.now().Unix())
	name := base
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}

	dst := filepath.Join(dir, name)
	if err := writeFileAtomicDurable(dst, src, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// Backups lists backup file names, oldest first.
func (s *Store) Backups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, BackupDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// ResolvePath returns the absolute filesystem path of node name. Relative
// paths resolve against the project root. ok is false when the node does not
// exist or carries no path.
func (s *Store) ResolvePath(name string) (path string, ok bool) {
	el, exists := s.Node(name)
	if !exists {
		return "", false
	}
	p := element.PathOf(el)
	if p == "" {
		return "", false
	}
	return s.Abs(p), true
}

// Abs resolves a stored path against the project root.
func (s *Store) Abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.root, p)
}

// Rel converts an absolute path under the project root into the relative
// form stored on nodes. Paths outside the root stay absolute.
func (s *Store) Rel(p string) string {
	if !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}
