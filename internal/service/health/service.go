package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/observability/telemetry"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// gauge is the rec_dependency_up value reported for a status.
func (s Status) gauge() float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Critical  bool          `json:"critical"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse lists every probe, sorted by name.
type ReadyResponse struct {
	Ready     bool          `json:"ready"`
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []CheckResult `json:"checks"`
}

// Check returns the result named name, if it ran.
func (r *ReadyResponse) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Checker probes one dependency.
type Checker func(ctx context.Context) CheckResult

type probe struct {
	name     string
	run      Checker
	critical bool
}

// Service answers liveness and readiness. Any unhealthy critical probe makes
// the process unready; other failures only degrade the reported status.
type Service struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	probes []probe

	log *zap.Logger
}

func NewService(version string, log *zap.Logger) *Service {
	return &Service{
		version: version,
		started: time.Now(),
		timeout: 5 * time.Second,
		log:     log,
	}
}

// RegisterChecker adds a probe the ledger cannot serve without (store, cache).
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.add(probe{name: name, run: checker, critical: true})
}

// RegisterOptional adds a probe that can only degrade (broker, pause switch).
func (s *Service) RegisterOptional(name string, checker Checker) {
	s.add(probe{name: name, run: checker})
}

func (s *Service) add(p probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.probes {
		if s.probes[i].name == p.name {
			s.probes[i] = p
			return
		}
	}
	s.probes = append(s.probes, p)
	s.log.Info("Registered health checker", zap.String("name", p.name), zap.Bool("critical", p.critical))
}

func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Ready runs every probe concurrently, each bounded by the check timeout.
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	probes := append([]probe(nil), s.probes...)
	s.mu.RUnlock()

	results := make([]CheckResult, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p probe) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			r := p.run(checkCtx)
			r.Name = p.name
			r.Critical = p.critical
			results[i] = r
		}(i, p)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	resp := &ReadyResponse{Ready: true, Status: StatusHealthy, Timestamp: time.Now(), Checks: results}
	for _, r := range results {
		telemetry.DependencyUp.WithLabelValues(r.Name).Set(r.Status.gauge())
		if r.Status == StatusHealthy {
			continue
		}
		if r.Critical && r.Status == StatusUnhealthy {
			resp.Ready = false
			resp.Status = StatusUnhealthy
		} else if resp.Status == StatusHealthy {
			resp.Status = StatusDegraded
		}
	}
	return resp
}

// PingCheck turns a ping function into a Checker.
func (s *Service) PingCheck(name string, ping func(ctx context.Context) error) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		err := ping(ctx)
		r := CheckResult{Duration: time.Since(start), Timestamp: time.Now()}
		if err != nil {
			s.log.Warn("Health check failed", zap.String("name", name), zap.Error(err))
			r.Status = StatusUnhealthy
			r.Message = fmt.Sprintf("ping failed: %v", err)
			return r
		}
		r.Status = StatusHealthy
		r.Message = "reachable"
		return r
	}
}

// StatusCheck reports state that is not a connection, such as the pause
// switch or a breaker position.
func StatusCheck(fn func() (Status, string)) Checker {
	return func(ctx context.Context) CheckResult {
		status, message := fn()
		return CheckResult{Status: status, Message: message, Timestamp: time.Now()}
	}
}
