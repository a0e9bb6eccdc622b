package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"geckoclient/climate_monitor/climate"
	"geckoclient/climate_monitor/config"
	"geckoclient/climate_monitor/storage"
	"geckoclient/climate_monitor/website/internal/models"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/form/v4"
	_ "github.com/mattn/go-sqlite3"
)

// openBucketFinder is the part of the bucket store the dashboard reads.
type openBucketFinder interface {
	FindOpenBucket(ctx context.Context, deviceID string, now time.Time, window time.Duration) (*climate.Bucket, error)
}

type application struct {
	logger         *slog.Logger
	users          models.UserModelInterface
	buckets        openBucketFinder
	deviceID       string
	window         time.Duration
	now            func() time.Time
	templateCache  map[string]*template.Template
	formDecoder    *form.Decoder
	sessionManager *scs.SessionManager
}

type AdminConfig struct {
	AdminUser struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	} `json:"adminUser"`
}

func main() {
	addr := flag.String("addr", ":4000", "HTTP network address")
	dsn := flag.String("dsn", "instance/dashboard.db", "SQLite database file path for users and sessions")
	configPath := flag.String("config", "", "Optional YAML config file")
	adminPath := flag.String("admin", "config.json", "Admin user seed file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Ensure the "instance" directory exists
	instanceDir := filepath.Dir(*dsn)
	if _, err := os.Stat(instanceDir); os.IsNotExist(err) {
		if err := os.MkdirAll(instanceDir, 0755); err != nil {
			logger.Error("failed to create instance directory", "error", err)
			os.Exit(1)
		}
	}

	db, err := openDB(*dsn)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer db.Close()

	store, err := storage.Open(context.Background(), storage.Options{
		Driver:     cfg.StorageDriver,
		URI:        cfg.ConnectionString,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		logger.Error("failed to connect to the bucket store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	users := &models.UserModel{DB: db}
	createSessionTable(db, logger)
	if err := users.CreateTable(); err != nil {
		logger.Error("failed to create user table", "error", err)
		os.Exit(1)
	}
	if err := seedAdminUser(users, *adminPath, logger); err != nil {
		logger.Error("error seeding admin user", "error", err)
	}

	templateCache, err := newTemplateCache()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.New(db)
	sessionManager.Lifetime = 12 * time.Hour
	sessionManager.Cookie.Secure = true

	app := &application{
		logger:         logger,
		users:          users,
		buckets:        store,
		deviceID:       cfg.DeviceID,
		window:         cfg.BucketWindow,
		now:            time.Now,
		templateCache:  templateCache,
		formDecoder:    form.NewDecoder(),
		sessionManager: sessionManager,
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      app.routes(),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("starting server", "addr", *addr, "device_id", cfg.DeviceID)
	err = srv.ListenAndServe()
	logger.Error(err.Error())
	os.Exit(1)
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// seedAdminUser creates the admin from the seed file unless one exists.
func seedAdminUser(users models.UserModelInterface, configPath string, logger *slog.Logger) error {
	exists, err := users.AdminExists()
	if err != nil {
		return fmt.Errorf("error checking for existing admin: %w", err)
	}
	if exists {
		logger.Info("admin user already exists, skipping seeding")
		return nil
	}

	byteValue, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}
	var config AdminConfig
	if err := json.Unmarshal(byteValue, &config); err != nil {
		return err
	}
	if config.AdminUser.Email == "" || config.AdminUser.Password == "" {
		return errors.New("admin seed needs an email and a password")
	}

	err = users.Insert(config.AdminUser.Username, config.AdminUser.Email, config.AdminUser.Password, true)
	if err != nil {
		return fmt.Errorf("error inserting admin user: %w", err)
	}

	logger.Info("admin user created successfully", "email", config.AdminUser.Email)
	return nil
}

func createSessionTable(db *sql.DB, logger *slog.Logger) {
	stmt := `
			CREATE TABLE IF NOT EXISTS sessions (
					token CHAR(43) PRIMARY KEY,
					data BLOB NOT NULL,
					expiry TIMESTAMP(6) NOT NULL
			);
			CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry);
	`
	_, err := db.Exec(stmt)
	if err != nil {
		logger.Error("failed to create sessions table", "error", err)
		return // Return, don't exit
	}
	logger.Info("Sessions table created or already existed")
}
