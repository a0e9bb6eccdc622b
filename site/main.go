package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"geckoclient/climate_monitor/climate"
	"geckoclient/climate_monitor/config"
	"geckoclient/climate_monitor/storage"

	"github.com/gin-gonic/gin"
)

const (
	maxPoints     = 200
	defaultLimit  = 12
	maxLimit      = 100
	requestBudget = 10 * time.Second
)

// SensorData is one flattened sample served to the charts.
type SensorData struct {
	Value       string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

type api struct {
	store    storage.Store
	deviceID string
	window   time.Duration
	now      func() time.Time
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP network address")
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(context.Background(), storage.Options{
		Driver:     cfg.StorageDriver,
		URI:        cfg.ConnectionString,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		logger.Error("error opening database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	a := &api{store: store, deviceID: cfg.DeviceID, window: cfg.BucketWindow, now: time.Now}
	router := a.routes(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	logger.Info("starting readings api", "addr", *addr)
	if err := router.Run(*addr); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func (a *api) routes(middleware ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware...)
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/buckets", a.handleBuckets)
		apiGroup.GET("/sensor_data", a.handleSensorData)
	}
	return router
}

func (a *api) device(c *gin.Context) string {
	if id := c.Query("device_id"); id != "" {
		return id
	}
	return a.deviceID
}

func (a *api) handleBuckets(c *gin.Context) {
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestBudget)
	defer cancel()

	buckets, err := a.store.RecentBuckets(ctx, a.device(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying buckets: " + err.Error()})
		return
	}
	if buckets == nil {
		buckets = []climate.Bucket{}
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets, "count": len(buckets)})
}

// handleSensorData returns the samples of the open bucket, thinned to at
// most maxPoints entries.
func (a *api) handleSensorData(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestBudget)
	defer cancel()

	bucket, err := a.store.FindOpenBucket(ctx, a.device(c), a.now(), a.window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying data: " + err.Error()})
		return
	}
	if bucket == nil {
		c.JSON(http.StatusOK, []SensorData{})
		return
	}
	c.JSON(http.StatusOK, thin(bucket.Samples, maxPoints))
}

func thin(samples []climate.Sample, points int) []SensorData {
	step := 1
	if len(samples) > points {
		step = int(math.Ceil(float64(len(samples)) / float64(points)))
	}

	out := make([]SensorData, 0, min(len(samples), points))
	for i := 0; i < len(samples); i += step {
		s := samples[i]
		out = append(out, SensorData{
			Value:       s.Timestamp.Format("02:01:2006 15:04:05"),
			Temperature: s.Temperature,
			Humidity:    s.Humidity,
		})
	}
	return out
}
