package controllers

import (
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func parseLedgerFilter(c *gin.Context) (models.LedgerFilter, error) {
	filter := models.LedgerFilter{
		ItemCode:     c.Query("item_code"),
		LocationCode: models.LocationCode(c.Query("location_code")),
		PostingType:  models.PostingType(c.Query("posting_type")),
		ActorId:      c.Query("actor_id"),
	}
	if filter.LocationCode != "" && !models.ValidLocationCodes[filter.LocationCode] {
		return filter, models.NewValidationError("location_code", "unknown location %s", filter.LocationCode)
	}
	if filter.PostingType != "" && !models.ValidPostingTypes[filter.PostingType] {
		return filter, models.NewValidationError("posting_type", "unknown posting type %s", filter.PostingType)
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, models.NewValidationError("from", "must be RFC3339")
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, models.NewValidationError("to", "must be RFC3339")
		}
		filter.To = &t
	}
	return filter, nil
}

func GetStockBalance(c *gin.Context) {
	itemCode := c.Query("item_code")
	locationCode := models.LocationCode(c.Query("location_code"))
	if itemCode == "" || locationCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCodeValidation, "message": "item_code and location_code are required"})
		return
	}
	if !models.ValidLocationCodes[locationCode] {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCodeValidation, "message": "unknown location " + string(locationCode)})
		return
	}

	if v := c.Query("as_of"); v != "" {
		asOf, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCodeValidation, "message": "as_of must be RFC3339"})
			return
		}
		balance, err := models.BalanceAsOf(c.Request.Context(), itemCode, locationCode, asOf)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item_code": itemCode, "location_code": locationCode, "as_of": asOf, "balance": balance})
		return
	}

	balance, err := models.CurrentBalance(c.Request.Context(), itemCode, locationCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_code": itemCode, "location_code": locationCode, "balance": balance})
}

func GetLedgerRange(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := models.LedgerRange(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func GetRecentActivity(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := models.RecentActivity(c.Request.Context(), filter, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func ExportLedger(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=stock-ledger.xlsx")
	if err := reports.ExportLedgerXlsx(c.Request.Context(), filter, c.Writer); err != nil {
		respondError(c, err)
	}
}
