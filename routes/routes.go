package routes

import (
	"bitbucket.org/mmdatafocus/mfgops_backend/controllers"
	"bitbucket.org/mmdatafocus/mfgops_backend/middlewares"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {

	api := r.Group("/api", middlewares.Auth())
	{
		bom := api.Group("/bom")
		{
			bom.POST("/lineages", controllers.CreateBomLineage)
			bom.GET("/lineages", controllers.ListBomLineages)
			bom.POST("/lineages/:id/archive", controllers.ArchiveBomLineage)
			bom.POST("/lineages/:id/versions", controllers.CreateBomVersion)
			bom.GET("/lineages/:id/versions", controllers.GetBomVersions)
			bom.GET("/lineages/:id/active", controllers.GetActiveBomVersion)
			bom.POST("/versions/:versionId/activate", controllers.ActivateBomVersion)
			bom.GET("/resolve", controllers.ResolveBom)
		}

		stock := api.Group("/stock")
		{
			stock.POST("/post", controllers.PostStockDocument)
			stock.GET("/postings/:id", controllers.GetPosting)
			stock.POST("/postings/:id/reverse", controllers.ReversePosting)
			stock.GET("/balance", controllers.GetStockBalance)
			stock.GET("/ledger", controllers.GetLedgerRange)
			stock.GET("/ledger/recent", controllers.GetRecentActivity)
			stock.GET("/ledger/export", controllers.ExportLedger)
		}
	}
}
