package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type KafkaCfg struct {
	Brokers []string

	RefreshEnabled bool
	RefreshTopic   string
	RefreshGroupID string

	EventsEnabled bool
	EventsTopic   string
	EventsQueue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr         string
	LogLevel     string
	LogConsole   bool
	LogSampleN   int
	RedisAddr    string
	StoreEnabled bool
	StorePrefix  string
	FetchTimeout time.Duration
	// MaxDocumentBytes caps the size of a fetched capabilities document.
	MaxDocumentBytes int64
	CORSProxyURL     string
	CORSProxyBypass  []string
	RegistrySize     int
	WMSVersion       string
	H3Res            int
	H3ResMax         int
	Kafka            KafkaCfg
	Metrics          MetricsCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 3)
	maxRes := getint("H3_RES_MAX", 6)
	if maxRes > 15 {
		maxRes = 15
	}
	if res < 0 || res > maxRes {
		res = min(3, maxRes)
	}

	version := getenv("WMS_VERSION", "1.3.0")
	switch version {
	case "1.1.1", "1.3.0":
	default:
		version = "1.3.0"
	}

	brokers := getenv("KAFKA_BROKERS", "localhost:9092")

	return Config{
		Addr:             getenv("ADDR", ":8090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogConsole:       getbool("LOG_CONSOLE", false),
		LogSampleN:       getint("LOG_SAMPLE_N", 0),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		StoreEnabled:     getbool("STORE_ENABLED", false),
		StorePrefix:      getenv("STORE_PREFIX", "catalog:item:"),
		FetchTimeout:     getduration("FETCH_TIMEOUT", 30*time.Second),
		MaxDocumentBytes: int64(getint("MAX_DOCUMENT_BYTES", 32<<20)),
		CORSProxyURL:     getenv("CORS_PROXY_URL", ""),
		CORSProxyBypass:  splitCSV(getenv("CORS_PROXY_BYPASS", "")),
		RegistrySize:     getint("REGISTRY_SIZE", 1024),
		WMSVersion:       version,
		H3Res:            res,
		H3ResMax:         maxRes,
		Kafka: KafkaCfg{
			Brokers:        splitCSV(brokers),
			RefreshEnabled: getbool("REFRESH_ENABLED", false),
			RefreshTopic:   getenv("REFRESH_TOPIC", "capabilities-refresh"),
			RefreshGroupID: getenv("REFRESH_GROUP_ID", "catalog-refresher"),
			EventsEnabled:  getbool("EVENTS_ENABLED", false),
			EventsTopic:    getenv("EVENTS_TOPIC", "catalog-resolutions"),
			EventsQueue:    getint("EVENTS_QUEUE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,,c" into [a b c]
func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
