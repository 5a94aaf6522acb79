package healthcheck

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is a dependency the checker probes, such as the database or Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Periodically probes dependencies and remembers their health
type Checker struct {
	mu          sync.RWMutex
	checks      map[string]Pinger
	status      map[string]*Status
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	stopChan    chan struct{}
	running     bool
	logger      zerolog.Logger
}

// Holds health checker configuration
type Config struct {
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Per-probe timeout (default: 2s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
}

func NewChecker(checks map[string]Pinger, cfg Config, logger zerolog.Logger) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	checker := &Checker{
		checks:      checks,
		status:      make(map[string]*Status, len(checks)),
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		stopChan:    make(chan struct{}),
		logger:      logger.With().Str("component", "healthcheck").Logger(),
	}

	// Assume healthy until proven otherwise
	for name := range checks {
		checker.status[name] = &Status{
			Name:      name,
			IsHealthy: true,
			LastCheck: time.Now(),
		}
	}

	return checker
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info().
		Int("checks", len(c.checks)).
		Dur("interval", c.interval).
		Msg("Starting dependency health checks")

	c.CheckNow(context.Background())

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CheckNow(context.Background())
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stops the health checker
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
		c.logger.Info().Msg("Health checker stopped")
	}
}

// Probes every dependency concurrently and waits for all of them
func (c *Checker) CheckNow(ctx context.Context) {
	var wg sync.WaitGroup

	for name, p := range c.checks {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			c.check(ctx, name, p)
		}(name, p)
	}

	wg.Wait()
}

func (c *Checker) check(ctx context.Context, name string, p Pinger) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		c.recordFailure(name, err)
		return
	}
	c.recordSuccess(name)
}

func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	status := c.status[name]
	status.LastCheck = now
	status.LastSuccess = now
	status.LastError = ""
	status.FailureCount = 0

	if !status.IsHealthy {
		c.logger.Info().Str("check", name).Msg("Dependency is healthy again")
		status.IsHealthy = true
	}
}

func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	status := c.status[name]
	status.LastCheck = now
	status.LastFailure = now
	status.LastError = err.Error()
	status.FailureCount++

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		c.logger.Warn().
			Err(err).
			Str("check", name).
			Int("failures", status.FailureCount).
			Msg("Dependency is now unhealthy")
		status.IsHealthy = false
	}
}

// Returns the health status of a single dependency
func (c *Checker) GetStatus(name string) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status, exists := c.status[name]
	if !exists {
		return Status{}, false
	}
	return *status, true
}

// Returns a copy of every dependency's status
func (c *Checker) GetAllStatus() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusMap := make(map[string]Status, len(c.status))
	for name, status := range c.status {
		statusMap[name] = *status
	}

	return statusMap
}

// Healthy when every dependency is up, Unhealthy when all are down
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := 0
	for _, status := range c.status {
		if status.IsHealthy {
			healthy++
		}
	}

	switch {
	case healthy == len(c.status):
		return Healthy
	case healthy == 0:
		return Unhealthy
	default:
		return Degraded
	}
}
