package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g., ":5050")
//	-g string     gRPC bind address (e.g., ":50051")
//	-s string     storage backend: postgres, sqlite or memory
//	-d string     database DSN
//	-k string     password salt
//	-t string     token store override ("redis")
//	-r string     Redis address
//	-w duration   per-request timeout (e.g., "5s")
//	-l string     log level
//
// os.Args is filtered with flagx.FilterArgs first so the -c/-config flag
// handled by parseJson does not trip this flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-s", "-d", "-k", "-t", "-r", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port for health checks")
	fs.StringVar(&config.Storage, "s", config.Storage, "storage backend (postgres|sqlite|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.PasswordSalt, "k", config.PasswordSalt, "password salt")
	fs.StringVar(&config.TokenStore, "t", config.TokenStore, "token store override (redis)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.DurationVar(&config.RequestTimeout, "w", config.RequestTimeout, "per-request timeout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
