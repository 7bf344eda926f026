package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobmail/internal/handler"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ConnChecker interface {
	IsConnected() bool
}

type Router struct {
	Engine *gin.Engine
}

type Deps struct {
	Auth   *handler.AuthHandler
	Ingest *handler.IngestHandler
	Data   *handler.DataHandler
	// VerifySession 为 nil 时不挂会话中间件
	VerifySession func(token string) (string, error)
	DB            Pinger
	// Publisher 为 nil 时 readyz 不检查 MQ
	Publisher ConnChecker
}

func NewRouter(d Deps) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), MetricsMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		if d.Publisher != nil && !d.Publisher.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")
	if d.VerifySession != nil {
		api.Use(SessionMiddleware(d.VerifySession))
	}
	{
		api.POST("/auth-server", d.Auth.AuthServer)
		api.POST("/check-user", d.Auth.CheckUser)
		api.POST("/fetch-email", d.Ingest.FetchEmail)
		api.POST("/update-email", d.Ingest.UpdateEmail)
		api.POST("/email-route", d.Ingest.EmailRoute)
		api.POST("/insert-data", d.Ingest.InsertData)
		api.POST("/get-data", d.Data.GetData)
		api.POST("/export-data", d.Data.ExportData)
	}

	return &Router{Engine: r}
}

// Server 返回可优雅关闭的 http.Server
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
