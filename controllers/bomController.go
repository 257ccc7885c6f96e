package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateBomLineage(c *gin.Context) {
	var input models.NewBomLineage
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCodeValidation, "message": err.Error()})
		return
	}
	lineage, err := models.CreateBomLineage(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lineage)
}

func ListBomLineages(c *gin.Context) {
	var category *models.BomCategory
	if v := c.Query("category"); v != "" {
		cat := models.BomCategory(v)
		category = &cat
	}
	includeArchived := c.Query("include_archived") == "true"
	lineages, err := models.ListBomLineages(c.Request.Context(), category, includeArchived)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lineages)
}

func ArchiveBomLineage(c *gin.Context) {
	lineage, err := models.ArchiveBomLineage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lineage)
}

func CreateBomVersion(c *gin.Context) {
	var input models.NewBomVersion
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCodeValidation, "message": err.Error()})
		return
	}
	input.BomLineageId = c.Param("id")
	version, err := models.CreateBomVersion(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

func ActivateBomVersion(c *gin.Context) {
	version, err := models.ActivateBomVersion(c.Request.Context(), c.Param("versionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, version)
}

func GetBomVersions(c *gin.Context) {
	versions, err := models.GetBomVersionsByLineage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func GetActiveBomVersion(c *gin.Context) {
	version, err := models.GetActiveBomVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, version)
}

func ResolveBom(c *gin.Context) {
	resolved, err := models.ResolveBom(c.Request.Context(), c.Query("item_code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}
