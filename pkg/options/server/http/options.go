// Package http provides HTTP server configuration options.
package http

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains HTTP server configuration.
type Options struct {
	// Addr is the address to listen on.
	Addr string `json:"addr" mapstructure:"addr"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout covers the whole handler, so it must exceed the slowest
	// upload rebuild or question.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// MaxUploadSize limits an uploaded document in bytes.
	MaxUploadSize int64 `json:"max-upload-size" mapstructure:"max-upload-size"`
	// SkipLogPaths are not logged by the request logger.
	SkipLogPaths []string `json:"skip-log-paths" mapstructure:"skip-log-paths"`
	// CORSAllowOrigins 允许跨域的来源，为空时不安装 CORS 中间件。
	CORSAllowOrigins []string `json:"cors-allow-origins" mapstructure:"cors-allow-origins"`
	// CORSAllowCredentials 是否允许携带凭证，不能与 "*" 同时使用。
	CORSAllowCredentials bool `json:"cors-allow-credentials" mapstructure:"cors-allow-credentials"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Addr:          ":8000",
		ReadTimeout:   60 * time.Second,
		WriteTimeout:  5 * time.Minute,
		IdleTimeout:   90 * time.Second,
		MaxUploadSize: 32 << 20,
		SkipLogPaths:  []string{"/healthz"},

		CORSAllowOrigins:     []string{"http://localhost:3000"},
		CORSAllowCredentials: true,
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Addr, p+"http.addr", o.Addr, "Specify the HTTP server bind address and port.")
	fs.DurationVar(&o.ReadTimeout, p+"http.read-timeout", o.ReadTimeout, "Timeout for reading the entire request.")
	fs.DurationVar(&o.WriteTimeout, p+"http.write-timeout", o.WriteTimeout, "Timeout before timing out writes of the response.")
	fs.DurationVar(&o.IdleTimeout, p+"http.idle-timeout", o.IdleTimeout, "Maximum amount of time to wait for the next request.")
	fs.Int64Var(&o.MaxUploadSize, p+"http.max-upload-size", o.MaxUploadSize, "Maximum size in bytes of an uploaded document.")
	fs.StringSliceVar(&o.SkipLogPaths, p+"http.skip-log-paths", o.SkipLogPaths, "Request paths excluded from access logging.")
	fs.StringSliceVar(&o.CORSAllowOrigins, p+"http.cors-allow-origins", o.CORSAllowOrigins, "Origins allowed for cross-origin requests (empty disables CORS).")
	fs.BoolVar(&o.CORSAllowCredentials, p+"http.cors-allow-credentials", o.CORSAllowCredentials, "Allow credentials on cross-origin requests.")
}

// Validate validates the HTTP options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.write-timeout must be positive"))
	}
	if o.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("http.max-upload-size must be positive"))
	}
	if o.CORSAllowCredentials && slices.Contains(o.CORSAllowOrigins, "*") {
		errs = append(errs, fmt.Errorf("http.cors-allow-origins cannot contain \"*\" when credentials are allowed"))
	}
	return errs
}

// Complete completes the HTTP options with defaults.
func (o *Options) Complete() error {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = o.ReadTimeout
	}
	return nil
}
