package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/aaron777collins/smartbudget-sub003/internal/auth"
	"github.com/aaron777collins/smartbudget-sub003/internal/config"
	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/filestore"
	"github.com/aaron777collins/smartbudget-sub003/internal/handlers"
	"github.com/aaron777collins/smartbudget-sub003/internal/jobs"
	"github.com/aaron777collins/smartbudget-sub003/internal/logger"
	"github.com/aaron777collins/smartbudget-sub003/internal/models"
	"github.com/aaron777collins/smartbudget-sub003/internal/normalizer"
	"github.com/aaron777collins/smartbudget-sub003/internal/version"
)

func main() {
	// Handle --version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("SmartBudget %s (built %s, commit %s)\n",
			version.Version, version.BuildTime, version.GitCommit)
		os.Exit(0)
	}

	// Initialize logger first
	logger.Init()
	log := logger.Default()

	cfgPath := os.Getenv("SMARTBUDGET_CONFIG")
	if cfgPath == "" {
		cfgPath = "smartbudget.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error("config_load_failed", "path", cfgPath, "error", err.Error())
		os.Exit(1)
	}

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("database_open_failed", "path", cfg.DatabasePath, "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		log.Error("database_init_failed", "error", err.Error())
		os.Exit(1)
	}

	// Initialize auth and clean expired sessions on startup
	a := auth.New(db)
	a.CleanExpiredSessions()

	// Initialize filestore for statement uploads
	files, err := filestore.New(cfg.UploadDir)
	if err != nil {
		log.Error("filestore_init_failed", "path", cfg.UploadDir, "error", err.Error())
		os.Exit(1)
	}

	// Build the canonical merchant map: built-ins, then the optional
	// seed file, then persisted overrides. Later sources win.
	canonical := normalizer.NewCanonicalMap()
	if cfg.CanonicalMapPath != "" {
		if err := canonical.LoadSeedFile(cfg.CanonicalMapPath); err != nil {
			log.Error("canonical_map_load_failed", "path", cfg.CanonicalMapPath, "error", err.Error())
			os.Exit(1)
		}
	}
	stored, err := db.CanonicalMerchants()
	if err != nil {
		log.Error("canonical_map_db_load_failed", "error", err.Error())
		os.Exit(1)
	}
	for pattern, name := range stored {
		canonical.Add(pattern, name)
	}
	log.Info("canonical_map_loaded", "entries", canonical.Len())

	norm := normalizer.New(canonical, db)

	// Initialize and start job worker
	worker := jobs.NewWorker(db, log, cfg.PollInterval(), cfg.JobTimeout())
	worker.Register(models.JobTypeImportStatement, jobs.ImportStatementHandler(cfg.UploadDir, norm, cfg.Normalizer.UseDatabase))
	worker.Register(models.JobTypeNormalizeMerchants, jobs.NormalizeMerchantsHandler(norm))
	worker.Register(models.JobTypeTrainMerchants, jobs.TrainMerchantsHandler())
	worker.Start()
	defer worker.Stop()

	// Initialize handlers
	h := handlers.New(db, a, files, norm, cfg.Normalizer.UseDatabase)

	// Setup routes
	mux := http.NewServeMux()

	// Auth routes (no auth required)
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/logout", h.Logout)

	// Statement import
	mux.HandleFunc("POST /api/import", h.ImportStatement)
	mux.HandleFunc("POST /api/import/preview", h.ImportPreview)

	// Merchant normalization
	mux.HandleFunc("POST /api/normalize", h.Normalize)
	mux.HandleFunc("POST /api/normalize/jobs", h.NormalizeAsync)
	mux.HandleFunc("POST /api/merchants/train", h.TrainMerchants)

	// Jobs API
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", h.CancelJob)

	// Transactions and accounts
	mux.HandleFunc("GET /api/transactions", h.ListTransactions)
	mux.HandleFunc("POST /api/accounts", h.CreateAccount)

	// Version API
	mux.HandleFunc("GET /api/version", h.Version)

	// Wrap with middleware: logging -> auth -> mux
	handler := logger.HTTPMiddleware(a.Middleware(mux))

	log.Info("server_starting", "addr", cfg.ListenAddr, "version", version.Version)
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Error("server_failed", "error", err.Error())
		os.Exit(1)
	}
}
