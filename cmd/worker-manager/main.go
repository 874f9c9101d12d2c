// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"unipal-workers/internal/app"
	"unipal-workers/internal/common/aws"
	"unipal-workers/internal/common/camunda"
	"unipal-workers/internal/common/config"
	"unipal-workers/internal/common/logger"

	// Student Workers (1)
	vsp "unipal-workers/internal/workers/student/validate-student-profile"

	// Recommendation Workers (2)
	bc "unipal-workers/internal/workers/recommendation/build-candidates"
	ru "unipal-workers/internal/workers/recommendation/rank-universities"

	// Application Workers (4)
	aas "unipal-workers/internal/workers/application/aggregate-application-state"
	bdc "unipal-workers/internal/workers/application/build-document-checklist"
	lvi "unipal-workers/internal/workers/application/lookup-visa-info"
	ss "unipal-workers/internal/workers/application/search-scholarships"

	// Communication Workers (1)
	sl "unipal-workers/internal/workers/communication/send-shortlist"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	if err := config.RequireBroker(cfg); err != nil {
		zapLog.Fatal("broker not configured", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init stores and pipeline stages with retry ---
	components, err := app.Build(ctx, cfg, app.Options{
		ConnectRetries: 14,
		RetryDelay:     2 * time.Second,
		ServiceName:    "worker-manager",
	}, log)
	if err != nil {
		zapLog.Fatal("pipeline components failed", zap.Error(err))
	}
	defer components.Close()

	// --- Init notification clients ---
	var email sl.EmailSender
	var sms sl.SMSSender
	slCfg := sl.LoadConfig(cfg)
	if slCfg.EmailEnabled {
		ses, err := aws.NewSESClient(ctx, slCfg.AWSRegion, slCfg.FromEmail)
		if err != nil {
			zapLog.Error("SES client unavailable, email disabled", zap.Error(err))
		} else {
			email = ses
		}
	}
	if slCfg.SMSEnabled {
		sns, err := aws.NewSNSClient(ctx, slCfg.AWSRegion, slCfg.SenderID)
		if err != nil {
			zapLog.Error("SNS client unavailable, SMS disabled", zap.Error(err))
		} else {
			sms = sns
		}
	}

	zapLog.Info("All external service clients initialized")

	// --- START: Register ALL 8 Workers ---
	client := zeebe.GetClient()
	var workers []*camunda.JobWorker
	register := func(taskType string, handler camunda.HandlerFunc) {
		if w := camunda.StartWorker(client, taskType, config.GetWorkerConfig(cfg, taskType), handler, log); w != nil {
			workers = append(workers, w)
		}
	}

	// --- 1. Student Workers (1) ---
	register(vsp.TaskType, vsp.NewHandler(vsp.LoadConfig(cfg), components.Students, components.Snapshot, log).Handle)

	// --- 2. Recommendation Workers (2) ---
	if components.Builder != nil {
		register(bc.TaskType, bc.NewHandler(bc.LoadConfig(cfg), components.Builder, log).Handle)
	} else {
		zapLog.Warn("worker not started", zap.String("taskType", bc.TaskType), zap.Error(components.Unavailable))
	}

	var catalog ru.Catalog
	if components.Catalog != nil {
		catalog = components.Catalog
	}
	register(ru.TaskType, ru.NewHandler(ru.LoadConfig(cfg), components.Ranker, catalog, log).Handle)

	// --- 3. Application Workers (4) ---
	register(lvi.TaskType, lvi.NewHandler(lvi.LoadConfig(cfg), components.Visa, log).Handle)

	if components.Scholarships != nil {
		register(ss.TaskType, ss.NewHandler(ss.LoadConfig(cfg), components.Scholarships, log).Handle)
	} else {
		zapLog.Warn("worker not started", zap.String("taskType", ss.TaskType), zap.Error(components.Unavailable))
	}

	register(bdc.TaskType, bdc.NewHandler(bdc.LoadConfig(), log).Handle)
	register(aas.TaskType, aas.NewHandler(aas.LoadConfig(), log).Handle)

	// --- 4. Communication Workers (1) ---
	register(sl.TaskType, sl.NewHandler(slCfg, email, sms, log).Handle)

	zapLog.Info("Workers registered successfully", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			status, code := "ready", http.StatusOK
			if err := zeebe.HealthCheck(r.Context()); err != nil {
				status, code = "broker unreachable", http.StatusServiceUnavailable
			}
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  status,
				"workers": len(workers),
				"time":    time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
