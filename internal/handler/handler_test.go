package handler

import (
	"io"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
)

type responseEnvelope struct {
	Data       interface{}            `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func newTestContext(method, target, body string, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Params = params
	return c, rec
}
