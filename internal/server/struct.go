package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/gamestatus/internal/models"
	"github.com/woozymasta/gamestatus/internal/protocol/a2s"
)

// Store is the record persistence the API needs.
type Store interface {
	CreateRecord(rec models.ServerRecord) (models.ServerRecord, error)
	GetRecord(id string) (*models.ServerRecord, error)
	ListRecords() ([]models.ServerRecord, error)
	DeleteRecord(id string) (bool, error)
	SetDetected(id string, protocol models.Protocol, port int) (bool, error)
}

// Querier runs status queries against game servers.
type Querier interface {
	Fetch(ctx context.Context, rec *models.ServerRecord) models.Status
	FetchAll(ctx context.Context, recs []*models.ServerRecord) map[string]models.Status
	FetchRules(ctx context.Context, rec models.ServerRecord) ([]a2s.Rule, error)
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background protocol detection.
type Server struct {
	// store provides access to the persisted server records.
	store Store

	// game performs the live status queries.
	game Querier

	// queue passes freshly created auto-detect records from HTTP handlers
	// to background workers.
	queue chan detectJob

	// shutdown is closed to stop the background workers and the limiter cleanup.
	shutdown chan struct{}

	// authToken is the secret token required for record changes.
	authToken string

	// wg waits for background workers during shutdown.
	wg sync.WaitGroup

	// mu guards stopped and the queue close against concurrent enqueue.
	mu sync.RWMutex

	// maxBody limits incoming request bodies.
	maxBody int64

	// workers is the number of background detection goroutines.
	workers int

	// hardLimitCount is the maximum number of ad-hoc queries per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// stopped is set once the queue is closed.
	stopped bool

	// trustProxy indicates whether CF-Connecting-IP and X-Forwarded-For are
	// trusted when determining the client's real IP address.
	trustProxy bool
}

// detectJob is one record waiting for background protocol detection.
type detectJob struct {
	Record models.ServerRecord
}

// recordStatus pairs a stored record with its live status.
type recordStatus struct {
	Server models.ServerRecord `json:"server"`
	Status models.Status       `json:"status"`
}
