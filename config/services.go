package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeProcessor runs the job processor control loop.
	ServiceModeProcessor ServiceMode = "processor"
	// ServiceModeReaper runs the job reaper for retention cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeProcessor,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeProcessor, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, processor, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ProverConfig contains configuration for the external prover boundary.
type ProverConfig struct {
	// URL is the base URL of the prover service.
	URL string `env:"PROVER_URL" envDefault:"http://localhost:4101"`

	// Timeout bounds a single prove call. Exceeding it fails the job.
	Timeout time.Duration `env:"PROVER_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to prover configuration values.
func (p *ProverConfig) Sanitize() {
	p.URL = strings.TrimRight(strings.TrimSpace(p.URL), "/")
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
}

// ProcessorConfig contains job processor service configuration.
type ProcessorConfig struct {
	// Interval is the poll interval for pending jobs.
	Interval time.Duration `env:"PROCESSOR_INTERVAL" envDefault:"5s"`

	// BatchSize is the maximum number of pending jobs claimed per tick.
	BatchSize int `env:"PROCESSOR_BATCH_SIZE" envDefault:"10"`
}

// Sanitize applies guardrails to processor configuration values.
func (p *ProcessorConfig) Sanitize() {
	if p.Interval < time.Second {
		p.Interval = time.Second
	}
	if p.BatchSize < 1 {
		p.BatchSize = 1
	}
}

// WebhookConfig contains webhook dispatcher configuration.
type WebhookConfig struct {
	// Timeout bounds a single callback delivery attempt.
	Timeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`

	// MaxConcurrent bounds the number of in-flight callback deliveries.
	MaxConcurrent int `env:"WEBHOOK_MAX_CONCURRENT" envDefault:"8"`
}

// Sanitize applies guardrails to webhook configuration values.
func (w *WebhookConfig) Sanitize() {
	if w.Timeout <= 0 {
		w.Timeout = 10 * time.Second
	}
	if w.MaxConcurrent < 1 {
		w.MaxConcurrent = 1
	}
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the cleanup tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1h"`

	// JobMaxAge is the retention window for jobs; jobs whose updated_at is
	// older than this are removed regardless of status.
	JobMaxAge time.Duration `env:"REAPER_JOB_MAX_AGE" envDefault:"168h"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.JobMaxAge <= 0 {
		r.JobMaxAge = 168 * time.Hour
	}
}
