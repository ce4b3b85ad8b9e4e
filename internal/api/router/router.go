package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tudinhtu98/copee-nest/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "upload-api-service",
		})
	})

	uploadHandler := handler.NewUploadHandler(deps)
	ledgerHandler := handler.NewLedgerHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		uploads := v1.Group("/uploads")
		{
			// POST /api/v1/uploads - Queue upload jobs
			uploads.POST("", uploadHandler.CreateUploads)

			// GET /api/v1/uploads - List upload jobs with filtering and pagination
			uploads.GET("", uploadHandler.ListUploads)

			// GET /api/v1/uploads/:job_id - Get upload job status
			uploads.GET("/:job_id", uploadHandler.GetUpload)

			// POST /api/v1/uploads/cancel - Cancel jobs (all FAILED when no ids)
			uploads.POST("/cancel", uploadHandler.CancelUploads)

			// POST /api/v1/uploads/retry - Reset and re-dispatch FAILED jobs
			uploads.POST("/retry", uploadHandler.RetryUploads)
		}

		accounts := v1.Group("/ledger/:account_id")
		{
			// GET /api/v1/ledger/:account_id/balance - Current prepaid balance
			accounts.GET("/balance", ledgerHandler.GetBalance)

			// POST /api/v1/ledger/:account_id/credit - Top up the balance
			accounts.POST("/credit", ledgerHandler.Credit)

			// GET /api/v1/ledger/:account_id/entries - Transaction history
			accounts.GET("/entries", ledgerHandler.ListEntries)
		}
	}

	return r
}
