package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds the connection attempts made at startup.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects to the broker named in cfg.
func NewClient(ctx context.Context, cfg config.CamundaConfig) (*Client, error) {
	timeout := config.GetDuration(cfg.RequestTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewClientWithConfig(ctx, &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.UsePlaintext,
		ConnectionTimeout:      timeout,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientWithConfig creates the Zeebe client and waits for the broker
// topology, retrying transient failures with exponential backoff.
func NewClientWithConfig(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: cfg}
	if err := c.withRetry(ctx, "topology", func(ctx context.Context) error {
		_, err := zeebeClient.NewTopologyCommand().Send(ctx)
		return err
	}); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, err)
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func (c *Client) withRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	retry := c.config.RetryConfig
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt >= retry.MaxRetries {
			return mapZeebeError(err, operation, attempt)
		}

		select {
		case <-time.After(backoff(retry, attempt)):
		case <-ctx.Done():
			return fmt.Errorf("operation %s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
	}
}

func backoff(retry *RetryConfig, attempt int) time.Duration {
	delay := retry.BaseDelay * time.Duration(1<<attempt)
	if delay > retry.MaxDelay || delay <= 0 {
		delay = retry.MaxDelay
	}
	return delay
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string, attempt int) error {
	msg := err.Error()
	lower := strings.ToLower(msg)

	prefix := fmt.Sprintf("Zeebe operation '%s' failed", operation)
	if attempt > 0 {
		prefix += fmt.Sprintf(" after %d attempts", attempt+1)
	}
	wrapped := fmt.Errorf("%s: %s", prefix, msg)

	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(lower, "not found"):
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
