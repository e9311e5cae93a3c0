package config

import (
	"flag"
	"os"
	"time"

	"github.com/profolio/profolio/internal/flagx"
)

var serverFlags = flagx.Set{
	Valued: []string{"a", "g", "d", "s", "k", "t", "r", "e", "l", "p"},
	Bool:   []string{"demo"},
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC ops bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret
//	-k string   encryption passphrase
//	-t int      token validity, hours
//	-r string   Redis URL (redis://... or memory://)
//	-e string   environment: development | production
//	-demo bool  enable the demo token (use -demo=true)
//	-l string   log level
//	-p string   trusted proxies, comma separated IPs or CIDRs
//
// Notes:
//   - os.Args is filtered down to these flags first, so -c/-config
//     (handled by flagx.JsonConfigFlags) does not trip the parser.
//   - Token validity is accepted as whole hours and converted to time.Duration.
func parseFlags(config *Config) {
	args := serverFlags.Filter(os.Args[1:])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to serve HTTP on")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "address and port to serve gRPC ops on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.TokenSecret, "s", config.TokenSecret, "token signing secret")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "encryption passphrase")

	tokenValidity := fs.Int("t", int(config.TokenValidity.Hours()), "token validity (in hours)")

	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment (development|production)")
	fs.BoolVar(&config.DemoMode, "demo", config.DemoMode, "accept the demo token")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.Func("p", "trusted proxies (comma separated IPs or CIDRs)", func(v string) error {
		config.TrustedProxies = splitList(v)
		return nil
	})

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.TokenValidity = time.Duration(*tokenValidity) * time.Hour
		}
	})
}
