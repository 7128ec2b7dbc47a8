package handler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	"simflow/internal/dto"
	"simflow/internal/files"
	"simflow/internal/geometry"
	"simflow/internal/logger"
)

// GeometryHandler exports model geometry for 3D viewers. Input and output
// paths stay inside the outputs directory.
type GeometryHandler struct {
	logger   logger.Logger
	exporter *geometry.Exporter
	sandbox  *files.Sandbox
}

func NewGeometryHandler(log logger.Logger, exporter *geometry.Exporter, sandbox *files.Sandbox) *GeometryHandler {
	return &GeometryHandler{
		logger:   log.With(logger.String("component", "geometry_handler")),
		exporter: exporter,
		sandbox:  sandbox,
	}
}

func (h *GeometryHandler) ExportService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.GeometryExportRequest],
) (dto.GeometryExportResponse, *error_handler.ErrorCollection) {
	body := ioutil.Body

	idfPath, err := h.sandbox.Resolve(body.IDFPath)
	if err != nil {
		return dto.GeometryExportResponse{}, filesError(err)
	}
	outputDir := filepath.Dir(idfPath)
	if body.OutputDir != "" {
		if outputDir, err = h.sandbox.EnsureDir(body.OutputDir); err != nil {
			return dto.GeometryExportResponse{}, filesError(err)
		}
	}

	res, err := h.exporter.Export(geometry.ExportRequest{
		IDFPath:    idfPath,
		OutputDir:  outputDir,
		OutputName: body.OutputName,
		Formats:    body.Formats,
	})
	if err != nil {
		return dto.GeometryExportResponse{}, geometryError(ctx, h.logger, err)
	}

	exports := make(map[string]dto.GeometryFileExport, len(res.Exports))
	for format, out := range res.Exports {
		exports[format] = dto.GeometryFileExport{Path: out.Path, MTLPath: out.MTLPath, SizeBytes: out.SizeBytes}
	}
	msg := fmt.Sprintf("Exported %d format(s)", len(exports))
	if len(res.Errors) > 0 {
		msg += fmt.Sprintf(" with %d error(s)", len(res.Errors))
	}
	return dto.GeometryExportResponse{
		Success:  res.Success(),
		Exports:  exports,
		Errors:   res.Errors,
		Surfaces: res.Surfaces,
		Message:  msg,
	}, nil
}

func (h *GeometryHandler) InfoService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.GeometryInfoResponse, *error_handler.ErrorCollection) {
	path := ioutil.QueryParams["idf_path"]
	if path == "" {
		return dto.GeometryInfoResponse{}, error_handler.Validation("idf_path is required")
	}
	idfPath, err := h.sandbox.Resolve(path)
	if err != nil {
		return dto.GeometryInfoResponse{}, filesError(err)
	}

	m, err := h.exporter.Info(idfPath)
	if err != nil {
		return dto.GeometryInfoResponse{}, geometryError(ctx, h.logger, err)
	}

	var surfaces int
	for _, s := range m.Surfaces {
		if s.Kind != geometry.KindWindow && s.Kind != geometry.KindDoor && s.Kind != geometry.KindShading {
			surfaces++
		}
	}
	zones := m.Zones
	if zones == nil {
		zones = []string{}
	}
	return dto.GeometryInfoResponse{
		IDFPath:         idfPath,
		Zones:           len(m.Zones),
		Surfaces:        surfaces,
		Fenestrations:   m.Fenestrations,
		ShadingSurfaces: m.Shadings,
		TotalVertices:   m.VertexCount(),
		ZoneNames:       zones,
	}, nil
}

func geometryError(ctx context.Context, log logger.Logger, err error) *error_handler.ErrorCollection {
	switch {
	case errors.Is(err, geometry.ErrIDFNotFound):
		return error_handler.NotFound(err.Error())
	case errors.Is(err, geometry.ErrNoGeometry):
		return error_handler.Validation(err.Error())
	}
	log.WithContext(ctx).Error("geometry export failed", logger.Error(err))
	return error_handler.Internal("geometry export failed: " + err.Error())
}
