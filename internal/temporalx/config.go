package temporalx

import (
	"strings"
	"time"
)

type Config struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	ClientCAPath   string `yaml:"client_ca_path"`

	AutoRegisterNamespace bool `yaml:"auto_register_namespace"`
	RetentionDays         int  `yaml:"retention_days"`

	DialTimeout time.Duration `yaml:"dial_timeout"`
	DialMaxWait time.Duration `yaml:"dial_max_wait"`

	// WorkerConcurrency bounds concurrent activity and workflow tasks.
	WorkerConcurrency int `yaml:"worker_concurrency"`
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = stringsOr(c.Namespace, "contentagen")
	c.TaskQueue = stringsOr(c.TaskQueue, "contentagen-pipelines")
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		c.RetentionDays = 7
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	} else if c.DialMaxWait == 0 {
		c.DialMaxWait = 60 * time.Second
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 4
	}
	return c
}

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
