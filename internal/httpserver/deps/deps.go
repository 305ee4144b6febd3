package deps

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/dashboard"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/views"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/metrics"
)

// Auth is the session side the handlers and the guard rely on.
type Auth interface {
	Refresh(w http.ResponseWriter, r *http.Request) (*domain.User, error)
	CurrentUser(r *http.Request) (*domain.User, error)
	SignInWithProvider(ctx context.Context, providerID, next string) (string, error)
	ExchangeAuthCode(ctx context.Context, w http.ResponseWriter, code, state string) (string, error)
	SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Check is a named dependency checked by /readyz and /infra.
type Check struct {
	Name   string
	Impact string // what breaks when it is down
	Ping   func(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	AllowedHosts      []string // Host headers allowed to access the server
	AllowedCIDRS      []string // IPs allowed to access /metrics and /infra
	TrustProxy        bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	AuthRateBurst     int      // /auth/* burst per client IP
	AuthRatePerMinute int      // /auth/* refill per client IP

	Auth      Auth
	Providers []views.Provider     // sign-in buttons on /login
	Bookmarks dashboard.Repository // bookmark access for handlers without a mounted tab
	Tabs      *dashboard.Registry  // mounted dashboard controllers
	Views     *views.Renderer
	Metrics   *metrics.Metrics

	Checks       []Check       // backing services for readiness
	ShuttingDown *atomic.Bool  // set once graceful shutdown starts
	KeepAlive    time.Duration // SSE comment interval
}
