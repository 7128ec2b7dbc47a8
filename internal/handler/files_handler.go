package handler

import (
	"context"
	"errors"
	"path/filepath"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	"simflow/internal/dto"
	"simflow/internal/files"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
)

// FilesHandler exposes the engine outputs directory read-only.
type FilesHandler struct {
	logger  logger.Logger
	sandbox *files.Sandbox
}

func NewFilesHandler(log logger.Logger, sandbox *files.Sandbox) *FilesHandler {
	return &FilesHandler{
		logger:  log.With(logger.String("component", "files_handler")),
		sandbox: sandbox,
	}
}

func (h *FilesHandler) ListService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.FileListResponse, *error_handler.ErrorCollection) {
	folder := ioutil.QueryParams["folder_path"]
	if folder == "" {
		return dto.FileListResponse{}, error_handler.Validation("folder_path is required")
	}

	entries, err := h.sandbox.List(folder)
	if err != nil {
		return dto.FileListResponse{}, filesError(err)
	}

	out := make([]dto.FileEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.FileEntry{Name: e.Name, Path: e.Path, SizeBytes: e.SizeBytes, Extension: e.Extension})
	}
	return dto.FileListResponse{
		Success:    true,
		FolderPath: folder,
		FolderName: filepath.Base(folder),
		FileCount:  len(out),
		Files:      out,
	}, nil
}

func (h *FilesHandler) ReadService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.FileReadResponse, *error_handler.ErrorCollection) {
	path := ioutil.QueryParams["file_path"]
	if path == "" {
		return dto.FileReadResponse{}, error_handler.Validation("file_path is required")
	}
	maxLines, err := ioutil.QueryInt("max_lines", files.DefaultMaxLines)
	if err != nil || maxLines < 1 {
		return dto.FileReadResponse{}, error_handler.Validation("max_lines must be a positive integer")
	}

	res, err := h.sandbox.Read(path, maxLines)
	if err != nil {
		return dto.FileReadResponse{}, filesError(err)
	}
	return dto.FileReadResponse{
		Success:    true,
		FilePath:   res.Path,
		FileName:   res.Name,
		TotalLines: res.TotalLines,
		Truncated:  res.Truncated,
		Content:    res.Content,
	}, nil
}

// Download streams a file as an attachment. It bypasses the JSON handler
// wrapper because the body is not JSON.
func (h *FilesHandler) Download(c *gin.Context) {
	path := c.Query("file_path")
	if path == "" {
		handler.SendErrorResponse(c, error_handler.Validation("file_path is required"))
		return
	}

	resolved, err := h.sandbox.Resolve(path)
	if err != nil {
		handler.SendErrorResponse(c, filesError(err))
		return
	}

	h.logger.WithContext(c.Request.Context()).Debug("serving file", logger.String("path", resolved))
	c.Header("Content-Type", files.ContentType(resolved))
	c.FileAttachment(resolved, filepath.Base(resolved))
}

func filesError(err error) *error_handler.ErrorCollection {
	switch {
	case errors.Is(err, files.ErrOutsideOutputs):
		return error_handler.Forbidden(err.Error())
	case errors.Is(err, files.ErrNotFound):
		return error_handler.NotFound(err.Error())
	case errors.Is(err, files.ErrNotDirectory):
		return error_handler.Validation(err.Error())
	}
	return error_handler.Internal(err.Error())
}
