// Package stlstore keeps exported STL files on disk, grouped by project.
//
// Layout under the storage root:
//
//	<project>/<group>.stl
//	<project>/<group>_metadata.json
//
// Plain-text exports saved through SaveExport go to a separate exports
// directory.
package stlstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned for a project or file that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for project, group or file names that
	// are empty or would escape their directory.
	ErrInvalidName = errors.New("invalid name")
)

const metadataSuffix = "_metadata.json"

// FileInfo describes one stored file.
type FileInfo struct {
	Name     string         `json:"name"`
	Size     int64          `json:"size"`
	Created  time.Time      `json:"created"`
	Modified time.Time      `json:"modified"`
	Metadata map[string]any `json:"metadata"`
}

// Project summarises one project directory.
type Project struct {
	ProjectID string    `json:"projectId"`
	FileCount int       `json:"fileCount"`
	Created   time.Time `json:"created"`
}

// Status lists a project's STL files, newest first.
type Status struct {
	ProjectID  string     `json:"projectId"`
	Files      []FileInfo `json:"files"`
	TotalFiles int        `json:"totalFiles"`
	TotalSize  int64      `json:"totalSize"`
}

// Stored reports a completed write.
type Stored struct {
	FilePath  string    `json:"filePath"`
	FileSize  int64     `json:"fileSize"`
	ProjectID string    `json:"projectId"`
	GroupName string    `json:"groupName"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a filesystem STL store. Writes are serialised.
type Store struct {
	root    string
	exports string

	mu  sync.Mutex
	now func() time.Time
}

// New returns a Store rooted at root, writing plain exports to exports.
// Both directories are created if missing.
func New(root, exports string) (*Store, error) {
	for _, dir := range []string{root, exports} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("stlstore: create %s: %w", dir, err)
		}
	}
	return &Store{root: root, exports: exports, now: time.Now}, nil
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// Exports returns the plain-export directory.
func (s *Store) Exports() string { return s.exports }

// validName rejects names that are empty or are not a single path
// element.
func validName(kind, name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`+"\x00") || filepath.Base(name) != name {
		return fmt.Errorf("stlstore: %w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}

// Save writes data as <project>/<group>.stl. A non-empty metadata map is
// written alongside with timestamp and file_size added.
func (s *Store) Save(projectID, group string, data []byte, metadata map[string]any) (*Stored, error) {
	return s.SaveWith(projectID, group, metadata, func(path string) error {
		return os.WriteFile(path, data, 0o644)
	})
}

// SaveWith is Save for callers that produce the file themselves: write
// is called with the destination path.
func (s *Store) SaveWith(projectID, group string, metadata map[string]any, write func(path string) error) (*Stored, error) {
	if err := validName("project", projectID); err != nil {
		return nil, err
	}
	if err := validName("group", group); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stlstore: create project: %w", err)
	}
	path := filepath.Join(dir, group+".stl")
	if err := write(path); err != nil {
		return nil, fmt.Errorf("stlstore: write %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stlstore: stat %s: %w", path, err)
	}

	ts := s.now()
	if len(metadata) > 0 {
		meta := make(map[string]any, len(metadata)+2)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["timestamp"] = ts.Format(time.RFC3339Nano)
		meta["file_size"] = info.Size()
		buf, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("stlstore: encode metadata: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, group+metadataSuffix), buf, 0o644); err != nil {
			return nil, fmt.Errorf("stlstore: write metadata: %w", err)
		}
	}

	return &Stored{
		FilePath:  path,
		FileSize:  info.Size(),
		ProjectID: projectID,
		GroupName: group,
		Timestamp: ts,
	}, nil
}

// Project lists the STL files of projectID with their metadata.
func (s *Store) Project(projectID string) (*Status, error) {
	if err := validName("project", projectID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, projectID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stlstore: project %q: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stlstore: read project: %w", err)
	}

	st := &Status{ProjectID: projectID, Files: []FileInfo{}}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".stl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		st.Files = append(st.Files, FileInfo{
			Name:     e.Name(),
			Size:     info.Size(),
			Created:  info.ModTime(),
			Modified: info.ModTime(),
			Metadata: readMetadata(filepath.Join(dir, strings.TrimSuffix(e.Name(), ".stl")+metadataSuffix)),
		})
		st.TotalSize += info.Size()
	}
	sort.SliceStable(st.Files, func(i, j int) bool {
		return st.Files[i].Created.After(st.Files[j].Created)
	})
	st.TotalFiles = len(st.Files)
	return st, nil
}

// readMetadata returns the decoded metadata file, or an empty map when it
// is missing or unreadable.
func readMetadata(path string) map[string]any {
	meta := map[string]any{}
	buf, err := os.ReadFile(path)
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(buf, &meta); err != nil {
		return map[string]any{}
	}
	return meta
}

// Projects lists every project, newest first.
func (s *Store) Projects() ([]Project, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return []Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stlstore: read root: %w", err)
	}

	projects := []Project{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		var count int
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".stl") {
				count++
			}
		}
		projects = append(projects, Project{ProjectID: e.Name(), FileCount: count, Created: info.ModTime()})
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].Created.After(projects[j].Created)
	})
	return projects, nil
}

// Path returns the path of filename inside projectID, or ErrNotFound.
func (s *Store) Path(projectID, filename string) (string, error) {
	if err := validName("project", projectID); err != nil {
		return "", err
	}
	if err := validName("file", filename); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, projectID, filename)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("stlstore: %s/%s: %w", projectID, filename, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stlstore: stat: %w", err)
	}
	return path, nil
}

// SaveExport writes text to the exports directory as filename and returns
// the path and byte count.
func (s *Store) SaveExport(filename, text string) (string, int, error) {
	if err := validName("file", filename); err != nil {
		return "", 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.exports, filename)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", 0, fmt.Errorf("stlstore: write export: %w", err)
	}
	return path, len(text), nil
}
