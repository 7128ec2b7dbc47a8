package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"simflow/internal/domain"
	"simflow/internal/files"
	"simflow/internal/logger"
)

const (
	DestinationSupabase    = "supabase"
	DestinationGDrive      = "gdrive"
	DestinationObjectStore = "objectstore"
)

// Known lists every destination the engine understands, in export order.
var Known = []string{DestinationSupabase, DestinationGDrive, DestinationObjectStore}

var (
	ErrUnknownDestination = errors.New("unknown export destination")
	ErrNotConfigured      = errors.New("export destination not configured")
	ErrInvalidSource      = errors.New("invalid export source")
	ErrInvalidFolder      = errors.New("invalid destination folder")
)

// File is one local file queued for upload.
type File struct {
	Name        string
	Path        string
	SizeBytes   int64
	ContentType string
}

// Source is a validated local output folder.
type Source struct {
	Dir   string
	Name  string
	Files []File
}

// Result is the outcome of exporting one source to one destination.
type Result struct {
	Destination    string
	Location       string
	Files          []domain.FileOutcome
	Errors         []string
	FilesUploaded  int
	FilesFailed    int
	TotalSizeBytes int64

	SupabaseBucket string
	SupabaseFolder string
	FolderCreated  string
	FolderID       string
	FolderURL      string
	Bucket         string
	Prefix         string
}

func (r *Result) Success() bool {
	return r.FilesFailed == 0 && r.FilesUploaded > 0
}

func (r *Result) uploaded(f File) {
	r.FilesUploaded++
	r.TotalSizeBytes += f.SizeBytes
	r.Files = append(r.Files, domain.FileOutcome{
		Name:        f.Name,
		Success:     true,
		SizeBytes:   f.SizeBytes,
		ContentType: f.ContentType,
	})
}

func (r *Result) failed(f File, err error) {
	r.FilesFailed++
	msg := fmt.Sprintf("%s: %v", f.Name, err)
	r.Errors = append(r.Errors, msg)
	r.Files = append(r.Files, domain.FileOutcome{
		Name:        f.Name,
		Success:     false,
		SizeBytes:   f.SizeBytes,
		ContentType: f.ContentType,
		Error:       err.Error(),
	})
}

// Destination uploads a source folder somewhere. destinationFolder is the
// caller's override and may be empty; each destination applies its own default.
type Destination interface {
	Name() string
	Export(ctx context.Context, src *Source, destinationFolder string) (*Result, error)
}

// Exporter dispatches export requests to the configured destinations.
type Exporter struct {
	destinations map[string]Destination
	logger       logger.Logger
}

// NewExporter registers the given destinations. Known destinations that are
// not registered report ErrNotConfigured.
func NewExporter(log logger.Logger, destinations ...Destination) *Exporter {
	e := &Exporter{
		destinations: make(map[string]Destination),
		logger:       log.With(logger.String("component", "exporter")),
	}
	for _, d := range destinations {
		e.destinations[d.Name()] = d
	}
	return e
}

func (e *Exporter) Configured(name string) bool {
	_, ok := e.destinations[name]
	return ok
}

func (e *Exporter) Export(ctx context.Context, destination, sourceFolder, destinationFolder string) (*Result, error) {
	if !slices.Contains(Known, destination) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, destination)
	}
	d, ok := e.destinations[destination]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, destination)
	}

	src, err := CollectSource(sourceFolder)
	if err != nil {
		return nil, err
	}

	e.logger.Info("exporting folder",
		logger.String("destination", destination),
		logger.String("source", src.Dir),
		logger.String("destination_folder", destinationFolder),
		logger.Int("files", len(src.Files)),
	)

	res, err := d.Export(ctx, src, destinationFolder)
	if err != nil {
		e.logger.Error("export failed", logger.String("destination", destination), logger.Error(err))
		return nil, err
	}
	res.Destination = destination

	e.logger.Info("export finished",
		logger.String("destination", destination),
		logger.Int("uploaded", res.FilesUploaded),
		logger.Int("failed", res.FilesFailed),
		logger.Int64("bytes", res.TotalSizeBytes),
	)
	return res, nil
}

// CollectSource lists the regular files directly inside dir.
func CollectSource(dir string) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: source folder not found: %s", ErrInvalidSource, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: source path is not a directory: %s", ErrInvalidSource, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source folder: %w", err)
	}

	src := &Source{Dir: dir, Name: filepath.Base(filepath.Clean(dir))}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src.Files = append(src.Files, File{
			Name:        entry.Name(),
			Path:        path,
			SizeBytes:   fi.Size(),
			ContentType: files.ContentType(path),
		})
	}
	if len(src.Files) == 0 {
		return nil, fmt.Errorf("%w: no files found in source folder: %s", ErrInvalidSource, dir)
	}
	sort.Slice(src.Files, func(i, j int) bool { return src.Files[i].Name < src.Files[j].Name })
	return src, nil
}
