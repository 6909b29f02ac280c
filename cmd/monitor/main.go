// The monitor server launches runs in the background and streams their
// progress over Server-Sent Events.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mlhmc/app"
	"mlhmc/domain/core"
	"mlhmc/internal/config"
	"mlhmc/internal/container"
	apperrors "mlhmc/internal/errors"
)

var codeVersion = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	c, err := container.New(cfg, container.Options{
		CodeVersion: codeVersion,
		WithHub:     true,
		ExportExcel: true,
		WriteReport: true,
	})
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	gin.SetMode(cfg.Server.GinMode)
	router := gin.Default()

	router.GET("/events", c.Hub.HandleSSE)
	router.GET("/api/runs/active", func(gc *gin.Context) {
		gc.JSON(http.StatusOK, gin.H{"runs": c.Hub.ActiveRuns()})
	})
	router.GET("/api/runs/:id/status", handleRunStatus(c))
	router.POST("/api/runs", handleLaunchRun(c))
	router.GET("/healthz", func(gc *gin.Context) {
		gc.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Profiling.Enabled {
		go func() {
			log.Printf("pprof listening on :%s", cfg.Profiling.Port)
			if err := http.ListenAndServe(":"+cfg.Profiling.Port, nil); err != nil {
				log.Printf("pprof server stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		log.Printf("Monitor server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down monitor server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		log.Printf("Container shutdown: %v", err)
	}
}

// handleLaunchRun accepts a run request and executes it in the background;
// progress is observable on /events?run_id=<id>.
func handleLaunchRun(c *container.Container) gin.HandlerFunc {
	return func(gc *gin.Context) {
		var req app.RunRequest
		if err := gc.ShouldBindJSON(&req); err != nil {
			gc.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.RunID == "" {
			req.RunID = core.RunID(core.NewID())
		}

		go func() {
			if _, err := c.RunService.Execute(context.Background(), req); err != nil {
				log.Printf("Run %s failed: %v", req.RunID, err)
			}
		}()

		gc.JSON(http.StatusAccepted, gin.H{"run_id": req.RunID.String()})
	}
}

func handleRunStatus(c *container.Container) gin.HandlerFunc {
	return func(gc *gin.Context) {
		id, err := core.ParseRunID(gc.Param("id"))
		if err != nil {
			gc.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rec, err := c.Registry.GetRun(gc.Request.Context(), id)
		if err != nil {
			status := http.StatusInternalServerError
			if apperrors.GetCode(err) == apperrors.CodeNotFound || core.IsNotFoundError(err) {
				status = http.StatusNotFound
			}
			gc.JSON(status, gin.H{"error": err.Error()})
			return
		}
		gc.JSON(http.StatusOK, rec)
	}
}
