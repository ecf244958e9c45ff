// Package api wires the thin job-submission HTTP surface in front of
// the queue: POST /jobs to enqueue a conversion, GET /stats for queue
// counts, GET /backpressure for the breaker/backpressure probe, and
// GET /healthz for liveness. HTTP transport itself is out of scope for
// the pipeline's core (spec.md §1); this is the "integration glue"
// component wiring it to a caller.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/toursvc/conversion-pipeline/internal/config"
	"github.com/toursvc/conversion-pipeline/internal/middleware"
	"github.com/toursvc/conversion-pipeline/internal/pipeline"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
	"github.com/toursvc/conversion-pipeline/internal/queue"
	"github.com/toursvc/conversion-pipeline/internal/utils"
)

// validate runs the submission request through validator tags the
// default Gin binder doesn't express (range checks), on top of its
// own required-field binding.
var validate = validator.New()

// Submitter is the dependency the API consumes to enqueue work;
// *queue.Queue satisfies this.
type Submitter interface {
	Submit(job pipeline.Job) (string, error)
	Status() queue.Status
	Entry(jobID string) (*queue.Entry, bool)
}

// Setup builds the Gin router for the job-submission surface.
func Setup(q Submitter) *gin.Engine {
	router := gin.New()
	router.Use(otelgin.Middleware("tour-conversion-pipeline"))
	router.Use(middleware.Observability())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit())
	router.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.GetAllowedOrigins()
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", healthz)
	router.POST("/jobs", submitJob(q))
	router.GET("/jobs/:id", getJob(q))
	router.GET("/stats", stats(q))
	router.GET("/backpressure", backpressure(q))

	return router
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
}

type submitJobRequest struct {
	AssetID          string  `json:"assetId" binding:"required" validate:"required"`
	SourceKey        string  `json:"sourceKey" binding:"required" validate:"required"`
	Market           string  `json:"market" binding:"required" validate:"required"`
	Iterations       uint32  `json:"iterations" validate:"omitempty,gte=1"`
	QualityThreshold float64 `json:"qualityThreshold" validate:"omitempty,gte=0,lte=1"`
}

func submitJob(q Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendValidationError(c, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			utils.SendValidationError(c, err)
			return
		}

		job := pipeline.NewJob(req.AssetID, req.SourceKey, req.Market)
		if req.Iterations > 0 {
			job.Iterations = req.Iterations
		}
		if req.QualityThreshold > 0 {
			job.QualityThreshold = req.QualityThreshold
		}

		jobID, err := q.Submit(job)
		if err != nil {
			if bpErr, ok := err.(*pipelineerr.BackpressureError); ok {
				utils.SendError(c, http.StatusTooManyRequests, string(bpErr.Reason), bpErr)
				return
			}
			utils.SendInternalError(c, err)
			return
		}

		utils.SendCreated(c, "job accepted", gin.H{"jobId": jobID})
	}
}

func getJob(q Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, ok := q.Entry(c.Param("id"))
		if !ok {
			utils.SendError(c, http.StatusNotFound, "job not found", nil)
			return
		}
		utils.SendSuccess(c, "ok", entry)
	}
}

func stats(q Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, q.Status())
	}
}

func backpressure(q Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := q.Status()
		code := http.StatusOK
		if !status.Accepting {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}
