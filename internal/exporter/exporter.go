// Package exporter copies artifact files out of a project into its export
// target directory. Exports never touch the graph.
package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/metrics"
)

// Exporter copies the files of named nodes into a store's export target.
type Exporter struct {
	store  *graph.Store
	logger *slog.Logger
}

// New binds an exporter to st.
func New(st *graph.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: st, logger: logger}
}

// Export writes one name as a single file and several as a folder.
func (e *Exporter) Export(names []string, exportName string) (string, error) {
	switch len(names) {
	case 0:
		return "", graph.Invalid("export", exportName, "nothing to export")
	case 1:
		return e.ExportSingle(names[0], exportName)
	default:
		return e.ExportBatch(names, exportName)
	}
}

// ExportSingle copies the file of node name to {target}/{exportName}{ext}
// and returns the destination path.
func (e *Exporter) ExportSingle(name, exportName string) (string, error) {
	const op = "export"
	if err := checkExportName(op, exportName); err != nil {
		return "", err
	}
	src, err := e.resolve(op, name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(e.store.ExportTarget(), exportName+filepath.Ext(src))
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("%s %s: %w", op, name, err)
	}
	metrics.Exports.WithLabelValues("single").Inc()
	e.logger.Info("exported", "node", name, "path", dst)
	return dst, nil
}

// ExportBatch copies the files of names into {target}/{exportName}/ under
// their base names and returns the folder. Every name is resolved before
// anything is written.
func (e *Exporter) ExportBatch(names []string, exportName string) (string, error) {
	const op = "export batch"
	if err := checkExportName(op, exportName); err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", graph.Invalid(op, exportName, "nothing to export")
	}

	srcs := make([]string, len(names))
	owner := make(map[string]string, len(names))
	for i, name := range names {
		src, err := e.resolve(op, name)
		if err != nil {
			return "", err
		}
		base := filepath.Base(src)
		if prev, dup := owner[base]; dup {
			return "", graph.Invalid(op, name, fmt.Sprintf("file name %q also used by %q", base, prev))
		}
		owner[base] = name
		srcs[i] = src
	}

	dir := filepath.Join(e.store.ExportTarget(), exportName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for i, src := range srcs {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return "", fmt.Errorf("%s %s: %w", op, names[i], err)
		}
	}
	metrics.Exports.WithLabelValues("batch").Inc()
	e.logger.Info("exported batch", "files", len(srcs), "path", dir)
	return dir, nil
}

func (e *Exporter) resolve(op, name string) (string, error) {
	if !e.store.HasNode(name) {
		return "", graph.NotFound(op, name, "node not found")
	}
	src, ok := e.store.ResolvePath(name)
	if !ok {
		return "", graph.Invalid(op, name, "node has no file")
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", graph.NotFound(op, name, fmt.Sprintf("file %s not found", src))
	}
	if info.IsDir() {
		return "", graph.Invalid(op, name, "node path is a directory")
	}
	return src, nil
}

func checkExportName(op, exportName string) error {
	if exportName == "" || exportName == "." || exportName == ".." ||
		strings.ContainsAny(exportName, `/\`) {
		return graph.Invalid(op, exportName, "export name must be a plain file name")
	}
	return nil
}

// copyFile writes src to dst through a temp file in dst's directory, so a
// failed copy never leaves a truncated export behind.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
