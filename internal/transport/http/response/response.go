package response

import "github.com/gin-gonic/gin"

const (
	CodeOK              = 0
	CodeBadRequest      = 40000
	CodeInvalidEmail    = 40001
	CodeFileRequired    = 40002
	CodeQuestionEmpty   = 40003
	CodeUnauthorized    = 40100
	CodeNotFound        = 40400
	CodeSessionNotFound = 40401
	CodeFileNotFound    = 40402
	CodeFileTooLarge    = 41300
	CodeInternalServer  = 50000
	CodeUnavailable     = 50300
	CodeLLMUnavailable  = 50301
	CodeBadGateway      = 50200
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// FailureBody is the error shape of the secure-download route.
type FailureBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// Fail writes a secure-download error. details is omitted when empty.
func Fail(c *gin.Context, httpStatus int, message, details string) {
	c.AbortWithStatusJSON(httpStatus, FailureBody{
		Error:   message,
		Details: details,
	})
}
