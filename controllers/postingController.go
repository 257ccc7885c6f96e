package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/workflow"
	"github.com/gin-gonic/gin"
)

func PostStockDocument(c *gin.Context) {
	var doc workflow.StockDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCodeValidation, "message": err.Error()})
		return
	}
	posting, err := workflow.PostStockDocument(c.Request.Context(), &doc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, posting)
}

type reverseInput struct {
	Reason string `json:"reason" binding:"required"`
}

func ReversePosting(c *gin.Context) {
	var input reverseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCodeValidation, "message": err.Error()})
		return
	}
	reversal, err := workflow.ReversePosting(c.Request.Context(), c.Param("id"), input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reversal)
}

func GetPosting(c *gin.Context) {
	posting, err := models.GetPosting(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posting)
}
