package controllers

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var statusByErrorCode = map[string]int{
	models.ErrCodeValidation:        http.StatusBadRequest,
	models.ErrCodeNotFound:          http.StatusNotFound,
	models.ErrCodeAlreadyPosted:     http.StatusConflict,
	models.ErrCodeAlreadyReversed:   http.StatusConflict,
	models.ErrCodeDuplicateCode:     http.StatusConflict,
	models.ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	models.ErrCodeBomNotFound:       http.StatusUnprocessableEntity,
	models.ErrCodeConflict:          http.StatusConflict,
}

func respondError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.ErrCodeValidation,
			"message": "invalid payload",
			"fields":  utils.ProcessValidationErrors(err),
		})
		return
	}

	code := models.ErrorCode(err)
	if code == "" {
		config.LogError(config.GetLogger(), "controllers", "respondError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "internal error"})
		return
	}
	c.JSON(statusByErrorCode[code], gin.H{"error": code, "message": err.Error()})
}
