package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

// SourceReader loads knowledge source documents addressed by gs:// URIs.
type SourceReader interface {
	ReadObject(ctx context.Context, uri string) ([]byte, error)
	Close() error
}

type sourceReader struct {
	log           *logger.Logger
	cfg           Config
	storageClient *storage.Client
	httpClient    *http.Client
}

func NewSourceReader(ctx context.Context, log *logger.Logger, cfg Config) (SourceReader, error) {
	cfg, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	sr := &sourceReader{
		log:        log.With("service", "SourceReader"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	if cfg.Mode == ObjectStorageModeGCS {
		opts := ClientOptions(cfg.Credentials)
		opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
		sr.storageClient, err = storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
	}
	sr.log.Info("Object storage initialized",
		"mode", cfg.Mode,
		"emulator_host", cfg.EmulatorHost,
		"max_object_bytes", cfg.MaxObjectBytes,
	)
	return sr, nil
}

// ParseURI splits gs://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", "", perrors.Contract("invalid source uri %q: %v", uri, err)
	}
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", perrors.Contract("source uri %q must look like gs://bucket/key", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", perrors.Contract("source uri %q has no object key", uri)
	}
	return u.Host, key, nil
}

func (sr *sourceReader) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	var rc io.ReadCloser
	if sr.cfg.Mode == ObjectStorageModeGCSEmulator {
		rc, err = sr.openEmulator(ctx, bucket, key)
	} else {
		rc, err = sr.storageClient.Bucket(bucket).Object(key).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s", perrors.ErrNotFound, uri)
		}
	}
	if err != nil {
		if perrors.Is(err, perrors.ErrNotFound) {
			return nil, err
		}
		return nil, perrors.Transient("open "+uri, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, sr.cfg.MaxObjectBytes+1))
	if err != nil {
		return nil, perrors.Transient("read "+uri, err)
	}
	if int64(len(raw)) > sr.cfg.MaxObjectBytes {
		sr.log.Warn("Source object truncated", "uri", uri, "max_bytes", sr.cfg.MaxObjectBytes)
		raw = raw[:sr.cfg.MaxObjectBytes]
	}
	return raw, nil
}

func (sr *sourceReader) emulatorObjectMediaURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		sr.cfg.EmulatorHost,
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

func (sr *sourceReader) openEmulator(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sr.emulatorObjectMediaURL(bucket, key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed creating emulator download request: %w", err)
	}
	resp, err := sr.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed emulator download request: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: gs://%s/%s", perrors.ErrNotFound, bucket, key)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}

func (sr *sourceReader) Close() error {
	if sr.storageClient == nil {
		return nil
	}
	return sr.storageClient.Close()
}
