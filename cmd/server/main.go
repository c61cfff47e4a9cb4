package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RMahshie/resotrack/internal/acquisition"
	"github.com/RMahshie/resotrack/internal/api"
	"github.com/RMahshie/resotrack/internal/config"
	"github.com/RMahshie/resotrack/internal/instrument"
	"github.com/RMahshie/resotrack/internal/instrument/simulator"
	"github.com/RMahshie/resotrack/internal/processing"
	"github.com/RMahshie/resotrack/internal/recording"
	"github.com/RMahshie/resotrack/internal/repository/postgres"
	"github.com/RMahshie/resotrack/internal/storage"
	"github.com/RMahshie/resotrack/pkg/models"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	file, err := config.LoadAnalyzer(cfg.Acquisition.AnalyzerFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Acquisition.AnalyzerFile).Msg("Failed to load analyzer configuration")
	}
	analyzerCfg, err := file.AnalyzerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid analyzer configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder recording.Service
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}

		var archive storage.ArchiveService
		if cfg.AWS.S3Bucket != "" {
			archive, err = storage.NewS3Service(ctx, storage.S3Config{
				Bucket:    cfg.AWS.S3Bucket,
				Endpoint:  cfg.AWS.S3Endpoint,
				Region:    cfg.AWS.Region,
				AccessKey: cfg.AWS.AccessKeyID,
				SecretKey: cfg.AWS.SecretAccessKey,
			})
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create S3 client")
			}
			if err := archive.EnsureBucket(ctx); err != nil {
				log.Fatal().Err(err).Str("bucket", cfg.AWS.S3Bucket).Msg("Failed to prepare archive bucket")
			}
		}

		recorder = recording.NewRecorder(postgres.NewPostgresRecordingRepository(db), archive, file.RecordDuration)
		log.Info().Bool("archive", archive != nil).Msg("Recording enabled")
	} else {
		log.Warn().Msg("DATABASE_URL not set, recording disabled")
	}

	// Nothing after this point exits without releasing the instrument
	link, err := openLink(ctx, cfg.Instrument, file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to analyzer")
	}
	session, err := startSession(link, cfg.Acquisition.SettleDelay, analyzerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up analyzer")
	}
	defer func() {
		if err := session.Cleanup(); err != nil {
			log.Error().Err(err).Msg("Failed to release analyzer")
		}
	}()

	svc := processing.NewAcquisitionService(session, recorder, cfg.Acquisition.SampleInterval)

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create Huma API
	humaConfig := huma.DefaultConfig("Resotrack API", "1.0.0")
	humaConfig.DocsPath = "/api/docs"
	humaAPI := humachi.New(router, humaConfig)

	// Register health endpoint
	huma.Register(humaAPI, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = "1.0.0"
		resp.Body.Time = time.Now()
		return resp, nil
	})

	api.RegisterRoutes(router, humaAPI, svc, recorder)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting Resotrack API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return svc.Run(gctx)
	})

	// Either a signal or a failed loop shuts the server down
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}

	log.Info().Msg("Server exited")
}

// openLink connects to the analyzer, or to a simulated one centered on the
// first configured segment
func openLink(ctx context.Context, cfg config.InstrumentConfig, file *config.AnalyzerFile) (instrument.Link, error) {
	if !cfg.Simulate {
		link, err := instrument.Dial(ctx, cfg.Address, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return link, nil
	}

	resonance := simulator.Resonance{Center: 2.5e9, Bandwidth: 100e3, Peak: 0.5}
	if len(file.Segments) > 0 && file.Segments[0].F0 != nil {
		resonance.Center = *file.Segments[0].F0
		if span := file.Segments[0].Span; span != nil {
			resonance.Bandwidth = *span / models.DefaultBandwidthFactor
		}
	}
	log.Warn().Float64("center", resonance.Center).Msg("Using simulated analyzer")
	return simulator.New("E5071C", resonance), nil
}

// startSession configures the analyzer on link. The link is released when
// setup fails.
func startSession(link instrument.Link, settle time.Duration, cfg models.AnalyzerConfig) (*acquisition.Session, error) {
	session := acquisition.NewSession(link, acquisition.Options{SettleDelay: settle})
	if err := session.Setup(cfg); err != nil {
		if cerr := session.Cleanup(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release analyzer")
		}
		return nil, err
	}
	return session, nil
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_ip", r.RemoteAddr).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("user_agent", r.UserAgent()).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
