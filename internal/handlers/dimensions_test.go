package handlers_test

import (
	"net/http"
	"testing"

	"design-portal-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensions_AppendRenumberAndSummary(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice")
	h.seedProject(t, "alice", "p1", nil)
	base := "/api/v1/users/alice/projects/p1"

	w := h.do(t, "POST", base+"/dimensions", alice, gin.H{"dimensions": []gin.H{
		{"value": "2450", "label": "Wall 1", "notes": "Behind radiator"},
		{"value": 1200, "label": "Wall 2"},
		{"value": "", "label": "skipped"},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	appended := decode[models.AppendDimensionsResponse](t, w)
	require.Len(t, appended.Dimensions, 2)
	assert.Equal(t, 1, appended.Dimensions[0].MeasurementNumber)
	assert.Equal(t, 2, appended.Dimensions[1].MeasurementNumber)
	assert.Equal(t, 1200, appended.Dimensions[1].Value)
	assert.NotEmpty(t, appended.SummaryMessageID)

	msgs := decode[models.MessageListResponse](t, h.do(t, "GET", base+"/messages", alice, nil)).Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, appended.SummaryMessageID, msgs[0].ID)
	assert.Equal(t, "📏 Dimensions Added:\n\n1. 2450mm - Wall 1\n   Notes: Behind radiator\n\n2. 1200mm - Wall 2", msgs[0].Text)

	w = h.do(t, "POST", base+"/dimensions", alice, gin.H{"dimensions": []gin.H{{"value": "900", "label": "Door"}}})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 3, decode[models.AppendDimensionsResponse](t, w).Dimensions[0].MeasurementNumber)

	first := appended.Dimensions[0].ID
	require.Equal(t, http.StatusOK, h.do(t, "DELETE", base+"/dimensions/"+first, alice, nil).Code)

	dims := decode[models.DimensionListResponse](t, h.do(t, "GET", base+"/dimensions", alice, nil)).Dimensions
	require.Len(t, dims, 2)
	assert.Equal(t, []int{1, 2}, []int{dims[0].MeasurementNumber, dims[1].MeasurementNumber})
	assert.Equal(t, []string{"Wall 2", "Door"}, []string{dims[0].Label, dims[1].Label})

	upd := h.do(t, "PATCH", base+"/dimensions/"+dims[1].ID, alice, gin.H{"value": "910", "label": "Front door"})
	require.Equal(t, http.StatusOK, upd.Code, upd.Body.String())
	dims = decode[models.DimensionListResponse](t, h.do(t, "GET", base+"/dimensions", alice, nil)).Dimensions
	assert.Equal(t, 910, dims[1].Value)
	assert.Equal(t, 2, dims[1].MeasurementNumber)
}

func TestDimensions_EmptyBatchRejected(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice")
	h.seedProject(t, "alice", "p1", nil)

	w := h.do(t, "POST", "/api/v1/users/alice/projects/p1/dimensions", alice, gin.H{"dimensions": []gin.H{
		{"value": "", "label": "Wall"},
		{"value": "100", "label": " "},
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please add at least one measurement with a value and label", decode[models.ErrorResponse](t, w).Error)

	dims := decode[models.DimensionListResponse](t, h.do(t, "GET", "/api/v1/users/alice/projects/p1/dimensions", alice, nil)).Dimensions
	assert.Empty(t, dims)
}

func TestDimensions_UnknownProject(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice")

	w := h.do(t, "POST", "/api/v1/users/alice/projects/nope/dimensions", alice, gin.H{"dimensions": []gin.H{{"value": "1", "label": "x"}}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
