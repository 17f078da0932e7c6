package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type Config struct {
	Mode         ObjectStorageMode `yaml:"mode"`
	EmulatorHost string            `yaml:"emulator_host"`
	// Credentials is a service account JSON document or a path to one.
	Credentials string `yaml:"credentials"`
	// MaxObjectBytes caps how much of one source object is read.
	MaxObjectBytes int64 `yaml:"max_object_bytes"`
}

type ObjectStorageConfigErrorCode string

const (
	ObjectStorageConfigErrorInvalidMode         ObjectStorageConfigErrorCode = "invalid_mode"
	ObjectStorageConfigErrorMissingEmulatorHost ObjectStorageConfigErrorCode = "missing_emulator_host"
	ObjectStorageConfigErrorInvalidEmulatorHost ObjectStorageConfigErrorCode = "invalid_emulator_host"
)

type ObjectStorageConfigError struct {
	Code         ObjectStorageConfigErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ObjectStorageConfigError) Error() string {
	switch e.Code {
	case ObjectStorageConfigErrorInvalidMode:
		return fmt.Sprintf("invalid object storage mode %q (allowed: %q, %q)", e.Mode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("object storage mode %q requires an emulator host", ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid emulator host %q; expected absolute URL like http://fake-gcs:4443", e.EmulatorHost)
	default:
		return "invalid object storage config"
	}
}

func (e *ObjectStorageConfigError) Unwrap() error { return e.Cause }

// Resolve fills defaults: an unset mode with an emulator host selects the
// emulator, otherwise GCS.
func (cfg Config) Resolve() (Config, error) {
	cfg.EmulatorHost = strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	cfg.Mode = ObjectStorageMode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if cfg.Mode == "" {
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
		}
	}
	if cfg.MaxObjectBytes <= 0 {
		cfg.MaxObjectBytes = 8 << 20
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		return nil
	case ObjectStorageModeGCSEmulator:
	default:
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	if cfg.EmulatorHost == "" {
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ObjectStorageConfigError{
			Code:         ObjectStorageConfigErrorInvalidEmulatorHost,
			Mode:         string(cfg.Mode),
			EmulatorHost: cfg.EmulatorHost,
			Cause:        err,
		}
	}
	return nil
}
