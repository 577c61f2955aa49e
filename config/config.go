package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mbolis/fieldsurvey/client"
	"github.com/mbolis/fieldsurvey/submit"
	"github.com/robfig/cron/v3"
)

const (
	QueueSQLite = "sqlite"
	QueueRedis  = "redis"
)

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool

	APIURL     string
	APITimeout time.Duration

	QueueBackend  string
	RedisAddr     string
	ReplayPolicy  submit.Policy
	FlushSchedule string
}

// ParseFlags reads the configuration from the command line. Values found in
// a .env file or in FIELDSURVEY_* variables become the flag defaults.
func ParseFlags() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}
	return Parse(os.Args[0], os.Args[1:])
}

func Parse(name string, args []string) (cfg Config, err error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)

	var host string
	flags.StringVar(&host, "host", env("HOST", "127.0.0.1"), "listen host name")
	var port uint
	flags.UintVar(&port, "port", envUint("PORT", 8080), "listen port number")
	flags.StringVar(&cfg.DBUrl, "db-url", env("DB_URL", "fieldsurvey.sqlite"), "path to SQLite3 DB file")
	flags.StringVar(&cfg.TokenSecret, "token-secret", env("TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	var ttl uint
	flags.UintVar(&ttl, "token-ttl", envUint("TOKEN_TTL", 3600), "token TTL in seconds")
	flags.BoolVar(&cfg.Debug, "debug", env("DEBUG", "") != "", "log at DEBUG level")

	flags.StringVar(&cfg.APIURL, "api-url", env("API_URL", client.DefaultBaseURL), "survey backend base URL")
	flags.DurationVar(&cfg.APITimeout, "api-timeout", envDuration("API_TIMEOUT", 0), "survey backend call timeout (0 means none)")

	flags.StringVar(&cfg.QueueBackend, "queue-backend", env("QUEUE_BACKEND", QueueSQLite), "offline queue storage: sqlite or redis")
	flags.StringVar(&cfg.RedisAddr, "redis-addr", env("REDIS_ADDR", "localhost:6379"), "redis address for -queue-backend=redis")
	var policy string
	flags.StringVar(&policy, "replay-policy", env("REPLAY_POLICY", string(submit.DiscardAlways)), "what a queue flush does with failed surveys: discard-always or retain-failed")
	flags.StringVar(&cfg.FlushSchedule, "flush-schedule", env("FLUSH_SCHEDULE", ""), "cron spec for automatic queue flushes (empty disables)")

	if err = flags.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
		return
	}

	switch cfg.QueueBackend {
	case QueueSQLite, QueueRedis:
	default:
		err = fmt.Errorf("invalid -queue-backend %q", cfg.QueueBackend)
		return
	}

	if cfg.ReplayPolicy, err = submit.ParsePolicy(policy); err != nil {
		return
	}

	if cfg.FlushSchedule != "" {
		if _, perr := cron.ParseStandard(cfg.FlushSchedule); perr != nil {
			err = fmt.Errorf("invalid -flush-schedule: %w", perr)
			return
		}
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, def string) string {
	if v, ok := os.LookupEnv("FIELDSURVEY_" + key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func envUint(key string, def uint) uint {
	v, err := strconv.ParseUint(env(key, ""), 10, 0)
	if err != nil {
		return def
	}
	return uint(v)
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(env(key, ""))
	if err != nil {
		return def
	}
	return v
}
