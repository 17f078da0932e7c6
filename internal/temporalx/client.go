package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

const (
	dialBackoff    = 250 * time.Millisecond
	dialBackoffMax = 5 * time.Second
)

// NewClient dials Temporal, retrying until cfg.DialMaxWait elapses. It returns
// nil, nil when no address is configured.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (temporalsdkclient.Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.Address == "" {
		log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	if cfg.mTLS() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}

	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		c, err := temporalsdkclient.DialContext(dialCtx, opts)
		cancel()
		if err == nil {
			log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			if cfg.AutoRegisterNamespace {
				if err := EnsureNamespace(ctx, log, cfg); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
		if !sleepCtx(ctx, clampBackoff(dialBackoff, dialBackoffMax, attempt)) {
			return nil, ctx.Err()
		}
	}
}

// EnsureNamespace creates the namespace when it does not exist. Meant for
// self-hosted clusters; managed namespaces are provisioned out of band.
func EnsureNamespace(ctx context.Context, log *logger.Logger, cfg Config) error {
	cfg = cfg.WithDefaults()
	if cfg.Address == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The namespace client sends no namespace header, so it works before the
	// namespace exists.
	nsOpts := temporalsdkclient.Options{HostPort: cfg.Address, Logger: log}
	if cfg.mTLS() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return err
		}
		nsOpts.ConnectionOptions.TLS = tlsCfg
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(nsOpts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	for attempt := 1; ; attempt++ {
		_, err := nsClient.Describe(ctx, cfg.Namespace)
		if err == nil {
			return nil
		}
		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        cfg.Namespace,
				Description:                      "contentagen pipelines",
				WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(cfg.RetentionDays) * 24 * time.Hour),
			})
			var exists *serviceerror.NamespaceAlreadyExists
			if err == nil || errors.As(err, &exists) {
				log.Info("Registered Temporal namespace", "namespace", cfg.Namespace, "retention_days", cfg.RetentionDays)
				return nil
			}
		}
		if !isRetryableRPC(err) {
			return fmt.Errorf("temporal namespace ensure (namespace=%s): %w", cfg.Namespace, err)
		}
		log.Warn("Temporal namespace ensure retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		if !sleepCtx(ctx, clampBackoff(dialBackoff, dialBackoffMax, attempt)) {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", cfg.Namespace, err)
		}
	}
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: both TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH are required when enabling mTLS")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if sleep >= max {
			return max
		}
	}
	return sleep
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
