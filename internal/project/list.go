package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/graph"
)

// Info summarizes a project.
type Info struct {
	Name         string         `json:"name"`
	Root         string         `json:"root"`
	ExportTarget string         `json:"export_target"`
	Nodes        map[string]int `json:"nodes"`
	Edges        int            `json:"edges"`
	Backups      int            `json:"backups"`
	Violations   []string       `json:"violations,omitempty"`
}

// Describe summarizes an open store.
func Describe(st *graph.Store) (Info, error) {
	info := Info{
		Name:         st.ProjectName(),
		Root:         st.Root(),
		ExportTarget: st.ExportTarget(),
		Nodes:        make(map[string]int),
		Edges:        len(st.Edges()),
	}
	for _, k := range element.Kinds {
		info.Nodes[string(k)] = len(st.Nodes(k))
	}
	backups, err := st.Backups()
	if err != nil {
		return Info{}, err
	}
	info.Backups = len(backups)
	for _, v := range st.CheckIntegrity() {
		info.Violations = append(info.Violations, v.String())
	}
	return info, nil
}

// Describe summarizes the session's project.
func (s *Session) Describe() (Info, error) {
	var info Info
	err := s.View(func(st *graph.Store) error {
		var err error
		info, err = Describe(st)
		return err
	})
	return info, err
}

// List returns the projects directly under dir, sorted by name. Directories
// without a state file are skipped.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), graph.StateFile)); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
