package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"simflow/internal/domain"
	"simflow/internal/logger"
)

type GenerateRequest struct {
	ProjectID   string
	ProjectName string
	Location    domain.Location
	Building    domain.BuildingSpec
	// Simulation is nil when the caller leaves SimulationControl untouched.
	Simulation     *SimulationControl
	OutputFilename string
}

type SimulationControl struct {
	RunAnnual     bool
	RunDesignDays bool
}

type Result struct {
	OutputPath    string
	TemplateUsed  string
	Modifications []string
	GeneratedAt   time.Time
}

// Generator writes customized IDF models from catalog templates.
type Generator struct {
	catalog   *Catalog
	outputDir string
	logger    logger.Logger
	now       func() time.Time
}

func NewGenerator(catalog *Catalog, outputDir string, log logger.Logger) *Generator {
	return &Generator{
		catalog:   catalog,
		outputDir: outputDir,
		logger:    log.With(logger.String("component", "model_generator")),
		now:       time.Now,
	}
}

func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

func (g *Generator) Generate(req GenerateRequest) (*Result, error) {
	var (
		tmpl *Template
		err  error
	)
	if req.Building.TemplateID != "" {
		tmpl, err = g.catalog.Get(req.Building.TemplateID)
	} else {
		tmpl, err = g.catalog.Select(req.Building.BuildingType)
	}
	if err != nil {
		return nil, err
	}

	g.logger.Info("generating model", logger.String("template_id", tmpl.ID))

	raw, err := os.ReadFile(tmpl.IDFPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", tmpl.ID, err)
	}
	idf := string(raw)

	var mods []string
	apply := func(content string, m []string) {
		idf = content
		mods = append(mods, m...)
	}

	apply(applyLocation(idf, req.Location))
	if req.Building.Geometry != nil {
		apply(applyGeometry(idf, req.Building.Geometry, tmpl.Geometry))
	}
	if req.Building.BuildingType == "data_center" && req.Building.DataCenter != nil {
		apply(applyDataCenter(idf, req.Building.DataCenter))
	}
	if req.Building.BuildingType == "manufacturing" && req.Building.Manufacturing != nil {
		apply(applyManufacturing(idf, req.Building.Manufacturing))
	}
	if req.Building.Setpoints != nil {
		apply(applySetpoints(idf, req.Building.Setpoints))
	}
	if req.Simulation != nil {
		apply(applySimulationControl(idf, req.Simulation.RunAnnual, req.Simulation.RunDesignDays))
	}

	now := g.now()
	idf = metadataHeader(req, tmpl.ID, now) + idf

	path := filepath.Join(g.outputDir, g.fileName(req, now))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(idf), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write model: %w", err)
	}

	g.logger.Info("model generated",
		logger.String("path", path),
		logger.Int("modifications", len(mods)))

	return &Result{
		OutputPath:    path,
		TemplateUsed:  tmpl.ID,
		Modifications: mods,
		GeneratedAt:   now,
	}, nil
}

func (g *Generator) fileName(req GenerateRequest, now time.Time) string {
	if req.OutputFilename != "" {
		return filepath.Base(req.OutputFilename)
	}
	project := req.ProjectName
	if project == "" {
		project = "model"
	}
	return fmt.Sprintf("%s_%s.idf", domain.SafeName(project), now.Format("20060102_150405"))
}

func metadataHeader(req GenerateRequest, templateID string, now time.Time) string {
	rule := "! " + strings.Repeat("=", 73)
	return strings.Join([]string{
		rule,
		"! Generated by simflow engine",
		"! Template: " + templateID,
		"! Generated: " + now.Format(time.RFC3339),
		"! Project: " + valueOr(req.ProjectName, "Unknown"),
		"! Project ID: " + valueOr(req.ProjectID, "Unknown"),
		"! Location: " + valueOr(req.Location.Name, "Unknown"),
		rule,
		"",
		"",
	}, "\n")
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
