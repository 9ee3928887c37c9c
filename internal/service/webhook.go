package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zecrep/aggregator/internal/core"
	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/observability/metrics"
	"github.com/zecrep/aggregator/internal/observability/statsd"
)

// Callback headers sent with every delivery.
const (
	headerEvent          = "X-ZecRep-Event"
	headerSubscriptionID = "X-ZecRep-Subscription-Id"
	headerSignature      = "X-ZecRep-Signature"
)

// WebhookServiceConfig groups tuning knobs for WebhookService.
type WebhookServiceConfig struct {
	Timeout       time.Duration // per-delivery timeout; defaults to 10s
	MaxConcurrent int           // bound on concurrent deliveries; defaults to 8
}

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Repo    core.WebhookRepository // Required: subscription repository
	Config  WebhookServiceConfig
	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: metrics sink (StatsD-compatible)
	Client  *http.Client // Optional: HTTP client override for tests
}

// WebhookService manages partner subscriptions and delivers tier event
// callbacks. Delivery is best-effort: a slow or failing subscriber never
// affects job processing or other subscribers.
type WebhookService struct {
	repo    core.WebhookRepository
	logger  *slog.Logger
	metrics statsd.Sink
	client  *http.Client

	timeout       time.Duration
	maxConcurrent int

	wg sync.WaitGroup
}

const (
	defaultWebhookTimeout       = 10 * time.Second
	defaultWebhookMaxConcurrent = 8
)

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Repo == nil {
		return nil, errors.New("WebhookRepository is required")
	}

	timeout := opts.Config.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	maxConcurrent := opts.Config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultWebhookMaxConcurrent
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "webhook_service")
	}

	return &WebhookService{
		repo:          opts.Repo,
		logger:        logger,
		metrics:       opts.Metrics,
		client:        client,
		timeout:       timeout,
		maxConcurrent: maxConcurrent,
	}, nil
}

// MustNewWebhookService constructs a new WebhookService and panics on error.
func MustNewWebhookService(opts WebhookServiceOptions) *WebhookService {
	svc, err := NewWebhookService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create WebhookService: %v", err))
	}
	return svc
}

// Subscribe validates and registers a webhook subscription.
func (s *WebhookService) Subscribe(ctx context.Context, req *model.SubscribeRequest) (*model.WebhookSubscription, error) {
	if req == nil {
		return nil, errors.New("subscribe request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub := &model.WebhookSubscription{
		ID:           "wh_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		OwnerAddress: req.OwnerAddress,
		CallbackURL:  req.CallbackURL,
		Events:       req.Events,
		Secret:       req.Secret,
		Active:       true,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook subscription created",
			"id", sub.ID,
			"events", sub.Events,
		)
	}
	return sub, nil
}

// GetByID returns the subscription with the given id.
func (s *WebhookService) GetByID(ctx context.Context, id string) (*model.WebhookSubscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// List returns subscriptions, optionally filtered by owner address.
func (s *WebhookService) List(ctx context.Context, ownerAddress string) ([]*model.WebhookSubscription, error) {
	subs, err := s.repo.List(ctx, ownerAddress)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// Unsubscribe removes a subscription.
func (s *WebhookService) Unsubscribe(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook subscription removed", "id", id)
	}
	return nil
}

// Dispatch fans a tier event out to every active subscription whose event set
// contains it. Deliveries run in the background, bounded by MaxConcurrent,
// and are never surfaced to the caller; Dispatch only fails when the
// subscription listing itself fails.
func (s *WebhookService) Dispatch(ctx context.Context, event model.WebhookEvent, data model.TierEventData) error {
	subs, err := s.repo.ListActiveByEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("list subscriptions for event: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload := model.WebhookPayload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Deliveries are detached from the dispatching request's context so
		// a completed job's callbacks survive the request ending.
		group := new(errgroup.Group)
		group.SetLimit(s.maxConcurrent)
		for _, sub := range subs {
			group.Go(func() error {
				s.deliver(sub, event, body)
				return nil
			})
		}
		_ = group.Wait()
	}()

	return nil
}

// Close waits for all in-flight deliveries to finish.
func (s *WebhookService) Close() {
	s.wg.Wait()
}

func (s *WebhookService) deliver(sub *model.WebhookSubscription, event model.WebhookEvent, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := s.post(ctx, sub, event, body)
	elapsed := time.Since(start)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook delivery failed",
				"subscription_id", sub.ID,
				"event", event,
				"error", err,
			)
		}
	} else {
		if touchErr := s.repo.TouchLastTriggered(ctx, sub.ID, time.Now().UTC()); touchErr != nil && s.logger != nil {
			s.logger.DebugContext(ctx, "failed to record webhook delivery time",
				"subscription_id", sub.ID,
				"error", touchErr,
			)
		}
	}

	metrics.EmitWebhookDelivery(s.metrics, metrics.WebhookMetric{
		Event:    string(event),
		Result:   result,
		Duration: elapsed,
	})
}

func (s *WebhookService) post(ctx context.Context, sub *model.WebhookSubscription, event model.WebhookEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, string(event))
	req.Header.Set(headerSubscriptionID, sub.ID)
	if sub.Secret != "" {
		req.Header.Set(headerSignature, SignPayload(sub.Secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SignPayload computes the hex-encoded HMAC-SHA256 signature subscribers use
// to verify callback authenticity.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
