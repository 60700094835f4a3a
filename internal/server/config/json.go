package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/passm/internal/flagx"
	"github.com/dmitrijs2005/passm/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations use
// timex.Duration so both "10m" and integer nanoseconds are accepted. Fields
// absent from the file keep their current value.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	DatabaseDriver   string         `json:"database_driver"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	EncryptionKey    string         `json:"encryption_key"`
	EncryptionSalt   string         `json:"encryption_salt"`
	SessionTTL       timex.Duration `json:"session_ttl"`
	OTPTTL           timex.Duration `json:"otp_ttl"`
	ElevationTTL     timex.Duration `json:"elevation_ttl"`
	OTPRateLimit     int            `json:"otp_rate_limit"`
	OTPRateWindow    timex.Duration `json:"otp_rate_window"`
	BcryptCost       int            `json:"bcrypt_cost"`
	LogBackend       string         `json:"log_backend"`
	SMTPHost         string         `json:"smtp_host"`
	SMTPPort         int            `json:"smtp_port"`
	SMTPUser         string         `json:"smtp_user"`
	SMTPPassword     string         `json:"smtp_password"`
	SMTPFrom         string         `json:"smtp_from"`
	SMTPTimeout      timex.Duration `json:"smtp_timeout"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	ExportLinkTTL    timex.Duration `json:"export_link_ttl"`
	JanitorSchedule  string         `json:"janitor_schedule"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJson overlays values from the JSON file named by -c/-config (or
// PASSM_CONFIG) onto config. It panics if the file cannot be read or parsed.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFilePath()
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

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.EncryptionKey, c.EncryptionKey)
	setString(&config.EncryptionSalt, c.EncryptionSalt)
	setDuration(&config.SessionTTL, c.SessionTTL)
	setDuration(&config.OTPTTL, c.OTPTTL)
	setDuration(&config.ElevationTTL, c.ElevationTTL)
	setInt(&config.OTPRateLimit, c.OTPRateLimit)
	setDuration(&config.OTPRateWindow, c.OTPRateWindow)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setDuration(&config.SMTPTimeout, c.SMTPTimeout)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.ExportLinkTTL, c.ExportLinkTTL)
	setString(&config.JanitorSchedule, c.JanitorSchedule)
}
