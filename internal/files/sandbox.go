package files

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrNotFound       = errors.New("file not found")
	ErrOutsideOutputs = errors.New("access denied: path is outside the outputs directory")
	ErrNotDirectory   = errors.New("path is not a directory")
)

const DefaultMaxLines = 1000

var contentTypes = map[string]string{
	".csv":   "text/csv",
	".html":  "text/html",
	".htm":   "text/html",
	".json":  "application/json",
	".idf":   "text/plain",
	".epw":   "text/plain",
	".sql":   "application/x-sqlite3",
	".obj":   "model/obj",
	".mtl":   "text/plain",
	".glb":   "model/gltf-binary",
	".gltf":  "model/gltf+json",
	".txt":   "text/plain",
	".err":   "text/plain",
	".eso":   "text/plain",
	".eio":   "text/plain",
	".end":   "text/plain",
	".rdd":   "text/plain",
	".mdd":   "text/plain",
	".mtd":   "text/plain",
	".bnd":   "text/plain",
	".shd":   "text/plain",
	".dxf":   "application/dxf",
	".audit": "text/plain",
}

// ContentType maps a file extension to its MIME type.
func ContentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

type Entry struct {
	Name      string
	Path      string
	SizeBytes int64
	Extension string
}

type ReadResult struct {
	Path       string
	Name       string
	TotalLines int
	Truncated  bool
	Content    string
}

// Sandbox confines file access to the engine outputs directory.
type Sandbox struct {
	root string
}

func NewSandbox(outputDir string) (*Sandbox, error) {
	root, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve outputs directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return &Sandbox{root: root}, nil
}

func (s *Sandbox) Root() string {
	return s.root
}

// Resolve returns the absolute, symlink free form of path after checking it
// exists and lies inside the outputs directory.
func (s *Sandbox) Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if !s.contains(resolved) {
		return "", ErrOutsideOutputs
	}
	return resolved, nil
}

// EnsureDir creates dir when it is missing and returns its resolved form.
// dir must lie inside the outputs directory.
func (s *Sandbox) EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	if !s.contains(resolveExisting(abs)) {
		return "", ErrOutsideOutputs
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return s.Resolve(abs)
}

// resolveExisting resolves symlinks in the longest existing prefix of path
// and appends the missing remainder unchanged.
func resolveExisting(path string) string {
	missing := ""
	for p := path; ; p = filepath.Dir(p) {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(resolved, missing)
		}
		if p == filepath.Dir(p) {
			return path
		}
		missing = filepath.Join(filepath.Base(p), missing)
	}
}

func (s *Sandbox) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Sandbox) List(folder string) ([]Entry, error) {
	dir, err := s.Resolve(folder)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, folder)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, folder)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:      e.Name(),
			Path:      filepath.Join(folder, e.Name()),
			SizeBytes: fi.Size(),
			Extension: strings.ToLower(filepath.Ext(e.Name())),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read returns up to maxLines lines of a text file along with its total line count.
func (s *Sandbox) Read(path string, maxLines int) (*ReadResult, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var (
		b     strings.Builder
		total int
	)
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			total++
			if total <= maxLines {
				b.WriteString(line)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return &ReadResult{
		Path:       path,
		Name:       filepath.Base(resolved),
		TotalLines: total,
		Truncated:  total > maxLines,
		Content:    b.String(),
	}, nil
}
