package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"simflow/internal/logger"

	"gopkg.in/yaml.v3"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrNoTemplate       = errors.New("no template available")
)

// builtinSelection maps building types to their preferred template.
var builtinSelection = map[string]string{
	"data_center":   "DataCenter_SingleZone",
	"manufacturing": "Manufacturing_Warehouse",
	"warehouse":     "Manufacturing_Warehouse",
}

// GeometryDefaults are the dimensions the template geometry was drawn at.
type GeometryDefaults struct {
	LengthM float64 `yaml:"length_m"`
	WidthM  float64 `yaml:"width_m"`
	HeightM float64 `yaml:"height_m"`
}

type metadataFile struct {
	TemplateID   string `yaml:"template_id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	BuildingType string `yaml:"building_type"`
	HVACSystem   string `yaml:"hvac_system"`
	IDFFile      string `yaml:"idf_file"`
	Defaults     struct {
		Geometry GeometryDefaults `yaml:"geometry"`
	} `yaml:"defaults"`
}

type Template struct {
	ID           string
	Name         string
	Description  string
	BuildingType string
	HVACSystem   string
	Category     string
	IDFPath      string
	MetadataPath string
	Geometry     GeometryDefaults
	// Metadata is the metadata document as written on disk.
	Metadata map[string]any
}

// Catalog is the set of templates found under a directory, keyed by id.
type Catalog struct {
	templates map[string]*Template
	order     []string
}

// LoadCatalog scans <dir>/<category>/*.{json,yaml,yml}. Unreadable metadata and
// metadata whose IDF file is missing are skipped with a warning.
func LoadCatalog(dir string, log logger.Logger) (*Catalog, error) {
	log = log.With(logger.String("component", "template_catalog"))
	c := &Catalog{templates: make(map[string]*Template)}

	categories, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("templates directory does not exist", logger.String("dir", dir))
			return c, nil
		}
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, category := range categories {
		if !category.IsDir() {
			continue
		}
		categoryDir := filepath.Join(dir, category.Name())
		entries, err := os.ReadDir(categoryDir)
		if err != nil {
			log.Warn("failed to read template category", logger.String("dir", categoryDir), logger.Error(err))
			continue
		}

		for _, entry := range entries {
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".json", ".yaml", ".yml":
			default:
				continue
			}

			path := filepath.Join(categoryDir, entry.Name())
			tmpl, err := loadTemplate(path, category.Name())
			if err != nil {
				log.Warn("skipping template", logger.String("path", path), logger.Error(err))
				continue
			}
			if tmpl == nil {
				continue
			}
			if _, dup := c.templates[tmpl.ID]; !dup {
				c.order = append(c.order, tmpl.ID)
			}
			c.templates[tmpl.ID] = tmpl
		}
	}

	sort.Strings(c.order)
	log.Info("template catalog loaded", logger.Int("count", len(c.order)))
	return c, nil
}

func loadTemplate(path, category string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// yaml.v3 also reads the JSON metadata files
	var meta metadataFile
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	if meta.TemplateID == "" {
		return nil, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	idfPath := filepath.Join(filepath.Dir(path), meta.IDFFile)
	if meta.IDFFile == "" {
		return nil, fmt.Errorf("template %s has no idf_file", meta.TemplateID)
	}
	if _, err := os.Stat(idfPath); err != nil {
		return nil, fmt.Errorf("idf file not found for template %s: %s", meta.TemplateID, idfPath)
	}

	t := &Template{
		ID:           meta.TemplateID,
		Name:         meta.Name,
		Description:  meta.Description,
		BuildingType: meta.BuildingType,
		HVACSystem:   meta.HVACSystem,
		Category:     category,
		IDFPath:      idfPath,
		MetadataPath: path,
		Geometry:     meta.Defaults.Geometry,
		Metadata:     raw,
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.BuildingType == "" {
		t.BuildingType = "unknown"
	}
	if t.HVACSystem == "" {
		t.HVACSystem = "unknown"
	}
	return t, nil
}

// List returns templates sorted by id, optionally filtered by building type.
func (c *Catalog) List(buildingType string) []*Template {
	out := make([]*Template, 0, len(c.order))
	for _, id := range c.order {
		t := c.templates[id]
		if buildingType != "" && t.BuildingType != buildingType {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *Catalog) Get(id string) (*Template, error) {
	t, ok := c.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'. Available: %v", ErrTemplateNotFound, id, c.order)
	}
	return t, nil
}

// Select picks the template for a building type: the built-in choice when it
// is installed, else the first of the same type, else any template.
func (c *Catalog) Select(buildingType string) (*Template, error) {
	if id, ok := builtinSelection[buildingType]; ok {
		if t, ok := c.templates[id]; ok {
			return t, nil
		}
	}
	for _, id := range c.order {
		if c.templates[id].BuildingType == buildingType {
			return c.templates[id], nil
		}
	}
	if len(c.order) > 0 {
		return c.templates[c.order[0]], nil
	}
	return nil, fmt.Errorf("%w for building type: %s", ErrNoTemplate, buildingType)
}
