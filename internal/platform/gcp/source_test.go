package gcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

func TestResolveDefaultsToGCS(t *testing.T) {
	cfg, err := Config{}.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", ObjectStorageModeGCS, cfg.Mode)
	}
	if cfg.MaxObjectBytes <= 0 {
		t.Fatalf("max object bytes not defaulted")
	}
}

func TestResolveEmulatorHostSelectsEmulator(t *testing.T) {
	cfg, err := Config{EmulatorHost: "http://fake-gcs:4443/"}.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCSEmulator || cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("cfg: %+v", cfg)
	}
}

func TestResolveRejectsBadConfig(t *testing.T) {
	cases := map[string]struct {
		cfg  Config
		code ObjectStorageConfigErrorCode
	}{
		"unknown mode":  {Config{Mode: "s3"}, ObjectStorageConfigErrorInvalidMode},
		"missing host":  {Config{Mode: ObjectStorageModeGCSEmulator}, ObjectStorageConfigErrorMissingEmulatorHost},
		"relative host": {Config{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "fake-gcs"}, ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for name, tc := range cases {
		_, err := tc.cfg.Resolve()
		var cfgErr *ObjectStorageConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Code != tc.code {
			t.Fatalf("%s: want code %q got %v", name, tc.code, err)
		}
	}
}

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("gs://docs/brand/guide.md")
	if err != nil || bucket != "docs" || key != "brand/guide.md" {
		t.Fatalf("ParseURI: bucket=%q key=%q err=%v", bucket, key, err)
	}
	for _, bad := range []string{"https://docs/a", "gs://docs", "gs:///a"} {
		if _, _, err := ParseURI(bad); !errors.Is(err, perrors.ErrContractViolation) {
			t.Fatalf("%s: want contract error got %v", bad, err)
		}
	}
}

func TestReadObjectFromEmulator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/storage/v1/b/docs/o/brand%2Fguide.md":
			_, _ = w.Write([]byte("Our brand voice is warm and direct."))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sr, err := NewSourceReader(context.Background(), logger.Nop(), Config{
		Mode:           ObjectStorageModeGCSEmulator,
		EmulatorHost:   srv.URL,
		MaxObjectBytes: 9,
	})
	if err != nil {
		t.Fatalf("NewSourceReader: %v", err)
	}
	defer sr.Close()

	raw, err := sr.ReadObject(context.Background(), "gs://docs/brand/guide.md")
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if string(raw) != "Our brand" {
		t.Fatalf("object not truncated to limit: %q", raw)
	}
	if _, err := sr.ReadObject(context.Background(), "gs://docs/missing.md"); !errors.Is(err, perrors.ErrNotFound) {
		t.Fatalf("missing object: want not found got %v", err)
	}
}
