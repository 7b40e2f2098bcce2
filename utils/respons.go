package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Code    ErrorCode   `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
	})
}

// RespondAppError writes err using its code. Internal causes are logged and
// only their text is attached as detail.
func RespondAppError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	status := appErr.Code.HTTPStatus()

	resp := JSONResponse{
		Status:  false,
		Message: appErr.Message,
		Code:    appErr.Code,
		Data:    appErr.Details,
	}
	if appErr.Err != nil {
		resp.Error = appErr.Err.Error()
	}

	if status >= http.StatusInternalServerError {
		ErrorLogger.WithFields(map[string]interface{}{
			"code":       appErr.Code,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(RequestIDKey),
		}).Error(appErr.Error())
	}

	c.JSON(status, resp)
}
