package geometry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"simflow/internal/logger"
)

const (
	FormatOBJ  = "obj"
	FormatGLB  = "glb"
	FormatGLTF = "gltf"
)

var ErrUnsupportedFormat = errors.New("unsupported geometry format")

type ExportRequest struct {
	IDFPath string
	// OutputDir defaults to the directory of IDFPath.
	OutputDir string
	// OutputName defaults to the IDF file name without extension.
	OutputName string
	// Formats defaults to obj.
	Formats []string
}

type FormatResult struct {
	Path      string
	MTLPath   string
	SizeBytes int64
}

type ExportResult struct {
	Exports  map[string]FormatResult
	Errors   []string
	Surfaces int
}

func (r *ExportResult) Success() bool {
	return len(r.Exports) > 0 && len(r.Errors) == 0
}

// Exporter writes IDF geometry in viewer formats.
type Exporter struct {
	logger logger.Logger
}

func NewExporter(log logger.Logger) *Exporter {
	return &Exporter{logger: log.With(logger.String("component", "geometry_exporter"))}
}

// Info parses path and returns its geometry without writing anything.
func (e *Exporter) Info(path string) (*Model, error) {
	return LoadFile(path)
}

// Export writes every requested format. A format that fails is reported in
// ExportResult.Errors; only an unreadable IDF fails the whole call.
func (e *Exporter) Export(req ExportRequest) (*ExportResult, error) {
	m, err := LoadFile(req.IDFPath)
	if err != nil {
		return nil, err
	}

	dir := req.OutputDir
	if dir == "" {
		dir = filepath.Dir(req.IDFPath)
	}
	name := req.OutputName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(req.IDFPath), filepath.Ext(req.IDFPath))
	}
	formats := req.Formats
	if len(formats) == 0 {
		formats = []string{FormatOBJ}
	}

	res := &ExportResult{Exports: map[string]FormatResult{}, Surfaces: len(m.Surfaces)}
	for _, format := range formats {
		format = strings.ToLower(strings.TrimSpace(format))
		switch format {
		case FormatOBJ:
			out, err := writeOBJFiles(m, dir, name)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", format, err))
				continue
			}
			res.Exports[format] = *out
		case FormatGLB, FormatGLTF:
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v, export obj instead", format, ErrUnsupportedFormat))
		default:
			res.Errors = append(res.Errors, "unknown format: "+format)
		}
	}

	e.logger.Info("geometry exported",
		logger.String("idf_path", req.IDFPath),
		logger.Int("surfaces", len(m.Surfaces)),
		logger.Int("formats", len(res.Exports)),
		logger.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func writeOBJFiles(m *Model, dir, name string) (*FormatResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	objPath := filepath.Join(dir, name+".obj")
	mtlPath := filepath.Join(dir, name+".mtl")

	if err := writeFile(mtlPath, func(f *os.File) error { return WriteMTL(f) }); err != nil {
		return nil, err
	}
	if err := writeFile(objPath, func(f *os.File) error { return WriteOBJ(f, m, filepath.Base(mtlPath)) }); err != nil {
		return nil, err
	}

	info, err := os.Stat(objPath)
	if err != nil {
		return nil, err
	}
	return &FormatResult{Path: objPath, MTLPath: mtlPath, SizeBytes: info.Size()}, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
