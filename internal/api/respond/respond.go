package respond

import (
	"fmt"
	"io"
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// Error represents a standard structure for error responses.
type Error struct {
	Success bool   `json:"success"`
	Message string `json:"error"`
}

// JSON sends a JSON response with the specified HTTP status code and data.
// It uses the Gin context to encode the data into JSON format.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response made of the given fields with success set
// to true.
func OK(c *ginext.Context, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true

	JSON(c, http.StatusOK, body)
}

// Fail sends an error JSON response with the specified HTTP status code.
// The error message is wrapped in an Error struct.
func Fail(c *ginext.Context, status int, err error) {
	JSON(c, status, Error{Success: false, Message: err.Error()})
}

// Attachment streams size bytes from reader as a file download named name.
func Attachment(c *ginext.Context, name string, size int64, reader io.Reader) {
	c.DataFromReader(http.StatusOK, size, "application/octet-stream", reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}
