package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                   = 0
	CodeBadRequest           = 40000
	CodeUploadTooLarge       = 40001
	CodeUnsupportedDocument  = 40002
	CodeNoContent            = 42201
	CodePresentationNotFound = 40401
	CodeNoKnowledgeBase      = 40402
	CodeScrapeFailed         = 50201
	CodeGenerationFailed     = 50001
	CodeInternalServer       = 50000
	CodeServiceUnavailable   = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	Status(c, 200, data)
}

// Status writes a successful envelope with a non-200 status such as 202.
func Status(c *gin.Context, httpStatus int, data interface{}) {
	c.JSON(httpStatus, APIResponse{
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
