package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultS3Timeout       = 2 * time.Minute
	defaultPresignMax      = 7 * 24 * time.Hour
	defaultMaxRequestBytes = int64(512 << 20)
	defaultMaxParallel     = 8
)

type (
	APP struct {
		Name      string
		Host      string
		Port      string
		Env       string
		JWTSecret string
		// browser origins of the LMS dashboard; "*" allows any, empty disables CORS
		CORSOrigins []string
	}
	S3 struct {
		Bucket          string
		Region          string
		PublicBaseURL   string
		AccessKeyID     string
		SecretAccessKey string
		Endpoint        string
		UsePathStyle    bool
		Timeout         time.Duration
		PresignMax      time.Duration
		TransformURL    string
	}
	Upload struct {
		StagingDir      string
		MaxRequestBytes int64
		MaxParallel     int
	}
	MQ struct {
		User         string
		Password     string
		Vhost        string
		Host         string
		AmqpPort     string
		Exchange     string
		ExchangeType string
		QueueName    string
	}

	Config struct {
		App    APP
		S3     S3
		Upload Upload
		MQ     MQ
	}
)

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Load reads the process environment. Malformed numeric and duration values
// are reported here; missing required values are reported by Validate.
func Load() (Config, error) {
	var errs []error

	app := APP{
		Name:      getEnv("SERVICE_NAME", "lmsupload"),
		Host:      getEnv("SERVICE_HOST", ""),
		Port:      getEnv("SERVICE_PORT", "8080"),
		Env:       getEnv("SERVICE_ENV", ""),
		JWTSecret: getEnv("SERVICE_JWT_SECRET", ""),

		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}

	pathStyle, err := strconv.ParseBool(getEnv("S3_USE_PATH_STYLE", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("S3_USE_PATH_STYLE: %w", err))
	}
	timeout, err := time.ParseDuration(getEnv("S3_TIMEOUT", defaultS3Timeout.String()))
	if err != nil {
		errs = append(errs, fmt.Errorf("S3_TIMEOUT: %w", err))
	}
	presignMax, err := time.ParseDuration(getEnv("S3_PRESIGN_MAX", defaultPresignMax.String()))
	if err != nil {
		errs = append(errs, fmt.Errorf("S3_PRESIGN_MAX: %w", err))
	}
	s3 := S3{
		Bucket:          getEnv("S3_BUCKET", ""),
		Region:          getEnv("S3_REGION", ""),
		PublicBaseURL:   strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		UsePathStyle:    pathStyle,
		Timeout:         timeout,
		PresignMax:      presignMax,
		TransformURL:    strings.TrimRight(getEnv("IMAGE_TRANSFORM_BASE_URL", ""), "/"),
	}

	maxReq, err := strconv.ParseInt(getEnv("UPLOAD_MAX_REQUEST_BYTES", strconv.FormatInt(defaultMaxRequestBytes, 10)), 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_REQUEST_BYTES: %w", err))
	}
	maxParallel, err := strconv.Atoi(getEnv("UPLOAD_MAX_PARALLEL", strconv.Itoa(defaultMaxParallel)))
	if err != nil {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_PARALLEL: %w", err))
	}
	upload := Upload{
		StagingDir:      getEnv("UPLOAD_STAGING_DIR", os.TempDir()),
		MaxRequestBytes: maxReq,
		MaxParallel:     maxParallel,
	}

	mq := MQ{
		User:         getEnv("RABBITMQ_USER", ""),
		Password:     getEnv("RABBITMQ_PASSWORD", ""),
		Vhost:        getEnv("RABBITMQ_VHOST", ""),
		Host:         getEnv("RABBITMQ_HOST", ""),
		AmqpPort:     getEnv("RABBITMQ_AMQP_PORT", ""),
		Exchange:     getEnv("RABBITMQ_EXCHANGE", ""),
		ExchangeType: getEnv("RABBITMQ_EXCHANGE_TYPE", ""),
		QueueName:    getEnv("RABBITMQ_QUEUE_NAME", ""),
	}

	return Config{
		App:    app,
		S3:     s3,
		Upload: upload,
		MQ:     mq,
	}, errors.Join(errs...)
}

// Validate reports every missing or out-of-range setting at once so a
// misconfigured deployment fails at startup, not at first request.
func (c Config) Validate() error {
	var errs []error

	required := []struct {
		name  string
		value string
	}{
		{"S3_BUCKET", c.S3.Bucket},
		{"S3_REGION", c.S3.Region},
		{"S3_PUBLIC_BASE_URL", c.S3.PublicBaseURL},
		{"S3_ACCESS_KEY_ID", c.S3.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey},
		{"SERVICE_JWT_SECRET", c.App.JWTSecret},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	if c.S3.PublicBaseURL != "" {
		if u, err := url.Parse(c.S3.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("S3_PUBLIC_BASE_URL must be an absolute URL"))
		}
	}
	if c.S3.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("S3_TIMEOUT must be positive"))
	}
	if c.S3.PresignMax <= 0 {
		errs = append(errs, fmt.Errorf("S3_PRESIGN_MAX must be positive"))
	}
	if c.Upload.MaxRequestBytes <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_REQUEST_BYTES must be positive"))
	}
	if c.Upload.MaxParallel <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_PARALLEL must be positive"))
	}

	return errors.Join(errs...)
}

// EventsEnabled reports whether the broker section is configured.
func (c Config) EventsEnabled() bool { return c.MQ.Host != "" }

func (c Config) AMQPDSN() (string, error) {
	if c.MQ.User == "" || c.MQ.Host == "" || c.MQ.AmqpPort == "" {
		return "", fmt.Errorf("invalid MQ config: user, host and amqp port are required")
	}

	return fmt.Sprintf(
		"%s://%s@%s:%s/%s",
		"amqp",
		url.UserPassword(c.MQ.User, c.MQ.Password).String(),
		c.MQ.Host,
		c.MQ.AmqpPort,
		url.PathEscape(c.MQ.Vhost),
	), nil
}
