package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rgadsdon/mapveto/internal/auth"
	"github.com/rgadsdon/mapveto/internal/config"
	"github.com/rgadsdon/mapveto/internal/handlers"
	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/repository"
	"github.com/rgadsdon/mapveto/internal/scheduler"
	"github.com/rgadsdon/mapveto/internal/services"
	"github.com/rgadsdon/mapveto/internal/websocket"
)

// App holds all application dependencies
type App struct {
	log        logger.Logger
	handlers   *handlers.Handlers
	repo       *repository.Repository
	cancelJobs context.CancelFunc
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg *config.Config, adminAuth *auth.Auth) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// Initialize services
	mapService := services.NewMapService(log, repo)
	sessionService := services.NewSessionService(log, repo, cfg.SessionTTL)
	lifecycleService := services.NewLifecycleService(log, repo, cfg.SessionTTL)
	resolverService := services.NewResolverService(log, repo)
	supervisorService := services.NewSupervisorService(log, repo, cfg.HeartbeatThreshold, cfg.GracePeriod)
	linkService := services.NewLinkService(log, repo)
	settingsService := services.NewSettingsService(log, repo)

	// Initialize WebSocket hub with DI
	hub := websocket.New(log, sessionService, supervisorService)
	hub.Start()
	lifecycleService.SetBroadcaster(hub)
	resolverService.SetBroadcaster(hub)
	supervisorService.SetBroadcaster(hub)

	// Start background jobs with context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go hub.StartCountdown(ctx)
	jobs := scheduler.New(log, supervisorService, lifecycleService,
		cfg.TimeoutSweepInterval, cfg.HeartbeatSweepInterval, cfg.ExpirySweepInterval)
	jobs.Start(ctx)

	h := handlers.New(
		mapService,
		sessionService,
		lifecycleService,
		resolverService,
		supervisorService,
		linkService,
		settingsService,
		adminAuth,
		hub,
		log,
	)

	return &App{
		log:        log,
		handlers:   h,
		repo:       repo,
		cancelJobs: cancel,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.cancelJobs != nil {
		a.cancelJobs()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

// Run starts the HTTP server
func (a *App) Run(addr string) error {
	// Set default base URL if not configured, using detected LAN IP
	ip := getPreferredIP(realNetworkProvider{})
	baseURL := fmt.Sprintf("http://%s%s", ip, addr)
	a.setDefaultBaseURL(baseURL)

	a.log.Info("Server starting", "url", baseURL)
	a.log.Info("Admin API", "url", baseURL+"/api/admin")
	return http.ListenAndServe(addr, a.Router())
}

// setDefaultBaseURL sets the base URL setting if not already configured
// or if current value uses localhost (which isn't useful for QR codes)
func (a *App) setDefaultBaseURL(baseURL string) {
	ctx := context.Background()
	existing, _ := a.repo.GetSetting(ctx, "base_url")

	// Set default if empty or if current value uses localhost
	needsUpdate := existing == "" || strings.Contains(existing, "localhost")
	if needsUpdate {
		if err := a.repo.SetSetting(ctx, "base_url", baseURL); err != nil {
			a.log.Warn("Failed to set default base_url", "error", err)
		} else {
			a.log.Info("Default base URL set", "url", baseURL)
		}
	}
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for LAN access.
// Prefers private network addresses (192.168.x.x, 10.x.x.x, 172.16-31.x.x).
// Falls back to localhost if no suitable address is found.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP

	for _, iface := range ifaces {
		// Skip down, loopback, and point-to-point interfaces
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Only consider IPv4 addresses
			if ip == nil || ip.To4() == nil {
				continue
			}

			// Skip loopback
			if ip.IsLoopback() {
				continue
			}

			candidates = append(candidates, ip)
		}
	}

	// Prefer private network addresses
	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	// Fall back to any non-loopback if no private address found
	if len(candidates) > 0 {
		return candidates[0].String()
	}

	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}
