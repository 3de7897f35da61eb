package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/scanner"
	"github.com/mselser95/prediction-arb/internal/storage"
	"github.com/mselser95/prediction-arb/pkg/config"
	"github.com/mselser95/prediction-arb/pkg/healthprobe"
	"github.com/mselser95/prediction-arb/pkg/httpserver"
	"github.com/mselser95/prediction-arb/pkg/websocket"
)

// App is the main application orchestrator. It owns the scan loop, the
// sinks it writes to and the dashboard surface that reads from it.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	hub           *websocket.Hub
	scanner       *scanner.Scanner
	store         storage.Storage
	csv           *storage.CSVLogger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
