package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"simflow/commons/error_handler"
	"simflow/commons/response"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type ServiceFunc[InputDto any, OutputDto any] func(
	ctx context.Context,
	ioutil *RequestIo[InputDto],
) (OutputDto, *error_handler.ErrorCollection)

func HandleFunc[InputDto any, OutputDto any](
	deps HandlerDependencies,
	serviceFunc ServiceFunc[InputDto, OutputDto],
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := deps.Logger.WithContext(ctx)

		ioutil := BuildRequestIo[InputDto](c)

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if maxErr := (*http.MaxBytesError)(nil); errors.As(err, &maxErr) {
			SendErrorResponse(c, error_handler.PayloadTooLarge(
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)))
			return
		}
		if err != nil {
			log.Error("unable to read request body", logger.Error(err))
			SendErrorResponse(c, error_handler.Internal("unable to read request body"))
			return
		}

		ioutil.RawBody = bodyBytes

		if hasBody(c.Request.Method) {
			if len(bodyBytes) > 0 {
				// Restore the body for ShouldBindJSON to read
				c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
				err = c.ShouldBindJSON(&ioutil.Body)
			} else {
				err = binding.Validator.ValidateStruct(&ioutil.Body)
			}
			if err != nil {
				log.Warn("unable to bind request body",
					logger.Error(err),
					logger.String("path", c.FullPath()))
				SendErrorResponse(c, error_handler.Validation(err.Error()))
				return
			}
		}

		outputDto, errorCollection := serviceFunc(ctx, ioutil)

		if errorCollection != nil && errorCollection.HasErrors() {
			SendErrorResponse(c, errorCollection)
		} else {
			SendSuccessResponse(c, outputDto)
		}
	}
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// SendSuccessResponse writes data as-is. The status is 200 unless data
// implements response.StatusCoder.
func SendSuccessResponse[T any](c *gin.Context, data T) {
	status := http.StatusOK
	if sc, ok := any(data).(response.StatusCoder); ok {
		status = sc.HTTPStatus()
	}
	c.JSON(status, data)
}

func SendErrorResponse(c *gin.Context, errorCollection *error_handler.ErrorCollection) {
	detail := errorCollection.Detail()
	if detail == "" {
		detail = "Internal server error"
	}
	c.JSON(errorCollection.GetHTTPStatus(), response.ErrorResponse{Detail: detail})
}
