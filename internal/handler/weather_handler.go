package handler

import (
	"context"
	"errors"
	"time"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	"simflow/internal/dto"
	"simflow/internal/logger"
	"simflow/internal/weather"
)

type WeatherFetcher interface {
	Fetch(ctx context.Context, req weather.Request) (*weather.Result, error)
}

type WeatherHandler struct {
	logger  logger.Logger
	fetcher WeatherFetcher
}

func NewWeatherHandler(log logger.Logger, fetcher WeatherFetcher) *WeatherHandler {
	return &WeatherHandler{
		logger:  log.With(logger.String("component", "weather_handler")),
		fetcher: fetcher,
	}
}

func (h *WeatherHandler) FetchService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.WeatherFetchRequest],
) (dto.WeatherFetchResponse, *error_handler.ErrorCollection) {
	body := ioutil.Body
	res, err := h.fetcher.Fetch(ctx, weather.Request{
		Latitude:     *body.Latitude,
		Longitude:    *body.Longitude,
		LocationName: body.LocationName,
		StartYear:    body.StartYear,
		EndYear:      body.EndYear,
	})
	if err != nil {
		h.logger.WithContext(ctx).Error("weather fetch failed", logger.Error(err))
		if errors.Is(err, weather.ErrLookup) {
			return dto.WeatherFetchResponse{}, error_handler.Validation(err.Error())
		}
		return dto.WeatherFetchResponse{}, error_handler.Internal("weather fetch failed: " + err.Error())
	}

	cov := coverageDTO(res.Coverage)
	elevation := 0.0
	if res.Header.Elevation != nil {
		elevation = *res.Header.Elevation
	}

	return dto.WeatherFetchResponse{
		Success: true,
		EPWPath: res.EPWPath,
		Location: dto.WeatherLocation{
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
			Elevation: elevation,
			Name:      res.LocationName,
		},
		Metadata: dto.EPWMetadata{
			City:        res.Header.City,
			State:       res.Header.State,
			Country:     res.Header.Country,
			DataSource:  res.Header.DataSource,
			WMOID:       res.Header.WMOID,
			Latitude:    res.Header.Latitude,
			Longitude:   res.Header.Longitude,
			Timezone:    res.Header.Timezone,
			Elevation:   res.Header.Elevation,
			Comments1:   res.Header.Comments1,
			Comments2:   res.Header.Comments2,
			DataPeriods: res.Header.DataPeriods,
		},
		Coverage:  &cov,
		APISource: weather.APISource,
		Timestamp: res.FetchedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h *WeatherHandler) CoverageService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.CoverageResponse, *error_handler.ErrorCollection) {
	return dto.CoverageResponse{
		Success:         true,
		CoverageRegions: weather.Databases,
		APISource:       weather.APISource,
	}, nil
}

func (h *WeatherHandler) CheckCoverageService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.CoverageCheckResponse, *error_handler.ErrorCollection) {
	lat, okLat, err := ioutil.QueryFloat("latitude")
	if err != nil || !okLat || lat < -90 || lat > 90 {
		return dto.CoverageCheckResponse{}, error_handler.Validation("latitude must be a number between -90 and 90")
	}
	lon, okLon, err := ioutil.QueryFloat("longitude")
	if err != nil || !okLon || lon < -180 || lon > 180 {
		return dto.CoverageCheckResponse{}, error_handler.Validation("longitude must be a number between -180 and 180")
	}
	return coverageDTO(weather.CheckCoverage(lat, lon)), nil
}

func coverageDTO(c weather.Coverage) dto.CoverageCheckResponse {
	return dto.CoverageCheckResponse{
		Success:             true,
		Latitude:            c.Latitude,
		Longitude:           c.Longitude,
		AvailableDatabases:  c.AvailableDatabases,
		RecommendedDatabase: c.RecommendedDatabase,
		Notes:               c.Notes,
	}
}
