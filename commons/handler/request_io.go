package handler

import (
	"strconv"

	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
)

type RequestIo[T any] struct {
	Body        T
	RawBody     []byte
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string
}

type HandlerDependencies struct {
	Logger logger.Logger
}

func BuildRequestIo[T any](c *gin.Context) *RequestIo[T] {
	return &RequestIo[T]{
		PathParams:  extractPathParams(c),
		QueryParams: extractQueryParams(c),
		Headers:     extractHeaders(c),
	}
}

// QueryFloat parses a float query parameter. ok is false when the key is absent.
func (r *RequestIo[T]) QueryFloat(key string) (v float64, ok bool, err error) {
	raw, present := r.QueryParams[key]
	if !present || raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	return v, true, err
}

// QueryInt parses an int query parameter, returning def when absent.
func (r *RequestIo[T]) QueryInt(key string, def int) (int, error) {
	raw, present := r.QueryParams[key]
	if !present || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// QueryBool parses a bool query parameter, returning def when absent.
func (r *RequestIo[T]) QueryBool(key string, def bool) (bool, error) {
	raw, present := r.QueryParams[key]
	if !present || raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}

func extractPathParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for _, param := range c.Params {
		params[param.Key] = param.Value
	}
	return params
}

func extractQueryParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func extractHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
