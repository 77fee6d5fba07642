package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	t.Run("向上取整", func(t *testing.T) {
		p := NewPagination(1, 20, 41)
		assert.Equal(t, 3, p.TotalPage)
		assert.Equal(t, int64(41), p.Total)
	})

	t.Run("空结果", func(t *testing.T) {
		assert.Zero(t, NewPagination(1, 20, 0).TotalPage)
	})
}

func TestFail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, http.StatusNotFound, "NOT_FOUND", "prompt not found")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}
