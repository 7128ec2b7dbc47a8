package handler

import (
	"context"
	"errors"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	"simflow/internal/dto"
	"simflow/internal/export"
	"simflow/internal/files"
	"simflow/internal/logger"
)

type ExportHandler struct {
	logger   logger.Logger
	exporter *export.Exporter
	sandbox  *files.Sandbox
}

// NewExportHandler only uploads folders that sandbox resolves inside the
// outputs directory.
func NewExportHandler(log logger.Logger, exporter *export.Exporter, sandbox *files.Sandbox) *ExportHandler {
	return &ExportHandler{
		logger:   log.With(logger.String("component", "export_handler")),
		exporter: exporter,
		sandbox:  sandbox,
	}
}

func (h *ExportHandler) ExportService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.ExportRequest],
) (dto.ExportResponse, *error_handler.ErrorCollection) {
	destination := ioutil.PathParams["destination"]

	source, err := h.sandbox.Resolve(ioutil.Body.SourceFolder)
	if err != nil {
		if errors.Is(err, files.ErrOutsideOutputs) {
			return dto.ExportResponse{}, error_handler.Forbidden(err.Error())
		}
		return dto.ExportResponse{}, error_handler.Validation("source folder not found: " + ioutil.Body.SourceFolder)
	}

	res, err := h.exporter.Export(ctx, destination, source, ioutil.Body.DestinationFolder)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrUnknownDestination):
			return dto.ExportResponse{}, error_handler.NotFound(err.Error())
		case errors.Is(err, export.ErrInvalidSource),
			errors.Is(err, export.ErrNotConfigured),
			errors.Is(err, export.ErrInvalidFolder):
			return dto.ExportResponse{}, error_handler.Validation(err.Error())
		}
		h.logger.WithContext(ctx).Error("export failed",
			logger.String("destination", destination),
			logger.Error(err))
		return dto.ExportResponse{}, error_handler.Internal(destination + " export failed: " + err.Error())
	}

	return dto.ExportResponse{
		Success:        res.Success(),
		Destination:    res.Destination,
		Location:       res.Location,
		FilesUploaded:  res.FilesUploaded,
		FilesFailed:    res.FilesFailed,
		TotalSizeBytes: res.TotalSizeBytes,
		Files:          res.Files,
		Errors:         res.Errors,
		SupabaseBucket: res.SupabaseBucket,
		SupabaseFolder: res.SupabaseFolder,
		FolderCreated:  res.FolderCreated,
		FolderID:       res.FolderID,
		FolderURL:      res.FolderURL,
		Bucket:         res.Bucket,
		Prefix:         res.Prefix,
	}, nil
}
