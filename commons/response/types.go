package response

// ErrorResponse is the body of every non-2xx reply from both services.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type Errors struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

// StatusCoder is implemented by success payloads that are not plain 200s,
// e.g. an accepted async submission.
type StatusCoder interface {
	HTTPStatus() int
}
