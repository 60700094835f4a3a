package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/passm/internal/flagx"
)

var knownFlags = []string{
	"-a", "-w", "-driver", "-d", "-s", "-k", "-salt", "-t",
	"-otp-ttl", "-elevation-ttl", "-otp-limit", "-otp-window", "-bcrypt-cost", "-log",
	"-smtp-host", "-smtp-port", "-smtp-user", "-smtp-password", "-smtp-from",
	"-u", "-p", "-b", "-g", "-e", "-export-ttl", "-janitor",
}

// parseFlags populates Config fields from command-line flags.
//
// Short forms follow the historical layout:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP gateway bind address, empty disables it
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-k string   vault encryption key
//	-t int      session validity, minutes
//	-u/-p/-b/-g/-e  S3 user, password, bucket, region, endpoint
//
// The remaining settings use long names; durations take Go syntax ("10m").
// os.Args is filtered with flagx.FilterArgs first so flags owned by other
// components are ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "address and port to run HTTP gateway")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver: pgx, postgres or memory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "vault encryption key")
	fs.StringVar(&config.EncryptionSalt, "salt", config.EncryptionSalt, "vault key derivation salt")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session validity (in minutes)")

	fs.DurationVar(&config.OTPTTL, "otp-ttl", config.OTPTTL, "one-time code validity")
	fs.DurationVar(&config.ElevationTTL, "elevation-ttl", config.ElevationTTL, "elevation grant validity")
	fs.IntVar(&config.OTPRateLimit, "otp-limit", config.OTPRateLimit, "one-time codes allowed per account within the window")
	fs.DurationVar(&config.OTPRateWindow, "otp-window", config.OTPRateWindow, "rate limit window")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.LogBackend, "log", config.LogBackend, "log backend: slog, zap or zerolog")

	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "smtp-user", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "smtp-password", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.SMTPFrom, "smtp-from", config.SMTPFrom, "SMTP sender address")
	fs.DurationVar(&config.SMTPTimeout, "smtp-timeout", config.SMTPTimeout, "SMTP delivery timeout")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.DurationVar(&config.ExportLinkTTL, "export-ttl", config.ExportLinkTTL, "export download link validity")
	fs.StringVar(&config.JanitorSchedule, "janitor", config.JanitorSchedule, "cron schedule for purging expired codes")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
}
