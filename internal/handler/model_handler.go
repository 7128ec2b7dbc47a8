package handler

import (
	"context"
	"errors"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	"simflow/internal/dto"
	"simflow/internal/logger"
	"simflow/internal/template"
)

// ModelHandler serves the template catalog and IDF generation.
type ModelHandler struct {
	logger    logger.Logger
	generator *template.Generator
}

func NewModelHandler(log logger.Logger, generator *template.Generator) *ModelHandler {
	return &ModelHandler{
		logger:    log.With(logger.String("component", "model_handler")),
		generator: generator,
	}
}

func (h *ModelHandler) ListTemplatesService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.TemplateListResponse, *error_handler.ErrorCollection) {
	templates := h.generator.Catalog().List(ioutil.QueryParams["building_type"])

	out := make([]dto.TemplateSummary, 0, len(templates))
	for _, t := range templates {
		out = append(out, dto.TemplateSummary{
			TemplateID:   t.ID,
			Name:         t.Name,
			Description:  t.Description,
			BuildingType: t.BuildingType,
			HVACSystem:   t.HVACSystem,
			Category:     t.Category,
		})
	}
	return dto.TemplateListResponse{Success: true, Count: len(out), Templates: out}, nil
}

func (h *ModelHandler) GetTemplateService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.TemplateDetailResponse, *error_handler.ErrorCollection) {
	id := ioutil.PathParams["id"]
	t, err := h.generator.Catalog().Get(id)
	if err != nil {
		return dto.TemplateDetailResponse{}, error_handler.NotFound(err.Error())
	}
	return dto.TemplateDetailResponse{Success: true, TemplateID: t.ID, Metadata: t.Metadata}, nil
}

func (h *ModelHandler) GenerateService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.ModelGenerateRequest],
) (dto.ModelGenerateResponse, *error_handler.ErrorCollection) {
	body := &ioutil.Body
	loc, building := body.BuildingSpec()

	req := template.GenerateRequest{
		ProjectID:      body.ProjectID,
		ProjectName:    body.ProjectName,
		Location:       loc,
		Building:       building,
		OutputFilename: body.OutputFilename,
	}
	if o := body.SimulationOptions; o != nil {
		req.Simulation = &template.SimulationControl{RunAnnual: o.RunAnnual, RunDesignDays: o.RunDesignDays}
	}

	res, err := h.generator.Generate(req)
	if err != nil {
		log := h.logger.WithContext(ctx)
		switch {
		case errors.Is(err, template.ErrTemplateNotFound):
			return dto.ModelGenerateResponse{}, error_handler.NotFound(err.Error())
		case errors.Is(err, template.ErrNoTemplate):
			return dto.ModelGenerateResponse{}, error_handler.Validation(err.Error())
		}
		log.Error("model generation failed", logger.Error(err))
		return dto.ModelGenerateResponse{}, error_handler.Internal("model generation failed: " + err.Error())
	}

	return dto.ModelGenerateResponse{
		Success:              true,
		OutputPath:           res.OutputPath,
		TemplateUsed:         res.TemplateUsed,
		ModificationsApplied: res.Modifications,
		Timestamp:            timestamp(res.GeneratedAt),
	}, nil
}
