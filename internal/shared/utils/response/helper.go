package response

import "github.com/gin-gonic/gin"

// RespondJSON writes the standard envelope. Status is "success" or "error".
func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, Envelope{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}
