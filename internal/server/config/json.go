package config

import (
	"encoding/json"
	"os"

	"github.com/gin-org/sitebackend/internal/flagx"
	"github.com/gin-org/sitebackend/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from a zero value, so a partial file only overrides
// what it names. Durations accept "15m" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP *string `json:"endpoint_addr_http"`
	EndpointAddrGRPC *string `json:"endpoint_addr_grpc"`
	LogLevel         *string `json:"log_level"`

	DatabaseDSN *string `json:"database_dsn"`

	SecretKey                    *string         `json:"secret_key"`
	TokenIssuer                  *string         `json:"token_issuer"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	RotateRefreshTokens          *bool           `json:"rotate_refresh_tokens"`

	SessionTTL        *timex.Duration `json:"session_ttl"`
	SessionCookieName *string         `json:"session_cookie_name"`
	SecureCookies     *bool           `json:"secure_cookies"`

	RedisAddr     *string `json:"redis_addr"`
	RedisPassword *string `json:"redis_password"`
	RedisDB       *int    `json:"redis_db"`

	MailBackend  *string         `json:"mail_backend"`
	SMTPHost     *string         `json:"smtp_host"`
	SMTPPort     *int            `json:"smtp_port"`
	SMTPUsername *string         `json:"smtp_username"`
	SMTPPassword *string         `json:"smtp_password"`
	SMTPUseTLS   *bool           `json:"smtp_use_tls"`
	SMTPTimeout  *timex.Duration `json:"smtp_timeout"`
	MailFrom     *string         `json:"mail_from"`
	ContactEmail *string         `json:"contact_email"`

	S3RootUser     *string         `json:"s3_root_user"`
	S3RootPassword *string         `json:"s3_root_password"`
	S3Bucket       *string         `json:"s3_bucket"`
	S3Region       *string         `json:"s3_region"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint"`
	S3PresignTTL   *timex.Duration `json:"s3_presign_ttl"`

	SubmissionRatePerMinute *int `json:"submission_rate_per_minute"`
	SubmissionBurst         *int `json:"submission_burst"`

	CORSAllowedOrigins   []string `json:"cors_allowed_origins"`
	CORSAllowAllOrigins  *bool    `json:"cors_allow_all_origins"`
	CORSAllowCredentials *bool    `json:"cors_allow_credentials"`
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. Without the flag nothing is loaded. An unreadable file or invalid
// JSON panics, matching the flag parser.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.DatabaseDSN, c.DatabaseDSN)

	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.RotateRefreshTokens != nil {
		config.RotateRefreshTokens = *c.RotateRefreshTokens
	}

	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	setString(&config.SessionCookieName, c.SessionCookieName)
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}

	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}

	setString(&config.MailBackend, c.MailBackend)
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != nil {
		config.SMTPPort = *c.SMTPPort
	}
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	if c.SMTPUseTLS != nil {
		config.SMTPUseTLS = *c.SMTPUseTLS
	}
	if c.SMTPTimeout != nil {
		config.SMTPTimeout = c.SMTPTimeout.Duration
	}
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.ContactEmail, c.ContactEmail)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.S3PresignTTL != nil {
		config.S3PresignTTL = c.S3PresignTTL.Duration
	}

	if c.SubmissionRatePerMinute != nil {
		config.SubmissionRatePerMinute = *c.SubmissionRatePerMinute
	}
	if c.SubmissionBurst != nil {
		config.SubmissionBurst = *c.SubmissionBurst
	}

	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.CORSAllowAllOrigins != nil {
		config.CORSAllowAllOrigins = *c.CORSAllowAllOrigins
	}
	if c.CORSAllowCredentials != nil {
		config.CORSAllowCredentials = *c.CORSAllowCredentials
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
