package app

import (
	"context"
	"net/http"
	"time"

	"todoapi/internal/auth"
	"todoapi/internal/config"
	"todoapi/internal/handlers"
	"todoapi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

type routeDeps struct {
	cfg      config.Config
	store    *Store
	redis    *redis.Client
	registry *prometheus.Registry
	service  *service.TodoService
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, d routeDeps) {
	r.GET("/", rootHandler(d.cfg))
	r.GET("/health", healthHandler(d))
	r.GET("/version", versionHandler(d.cfg))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	api := r.Group("/api/v1", auth.RequireCaller())
	registerTodoRoutes(api, handlers.NewTodoHandler(d.service))
	registerCommentRoutes(api, handlers.NewCommentHandler(d.service, d.cfg.Comments.PageSize))
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Todo API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"metrics": "/metrics",
			"api":     "/api/v1",
		})
	}
}

// healthHandler pings the store and, when configured, Redis.
func healthHandler(d routeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		ok := true
		if err := d.store.Ping(ctx); err != nil {
			checks["store"] = err.Error()
			ok = false
		} else {
			checks["store"] = "ok"
		}
		if d.redis != nil {
			if err := d.redis.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				ok = false
			} else {
				checks["redis"] = "ok"
			}
		}
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ok": ok, "env": d.cfg.App.Env, "checks": checks})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerTodoRoutes(api *gin.RouterGroup, h *handlers.TodoHandler) {
	api.POST("/todos", h.Create)
	api.GET("/todos", h.List)
	api.GET("/todos/:todoId", h.GetByID)
	api.PATCH("/todos/:todoId", h.Update)
	api.DELETE("/todos/:todoId", h.Delete)
	api.POST("/todos/:todoId/attachment", h.RequestUpload)
}

func registerCommentRoutes(api *gin.RouterGroup, h *handlers.CommentHandler) {
	api.POST("/todos/:todoId/comments", h.Add)
	api.GET("/todos/:todoId/comments", h.List)
}
