package config

import (
	"os"
	"strconv"
	"strings"
)

// Settings holds the tunables read from the environment once at start-up.
type Settings struct {
	ServerPort      string
	JWTSecret       string
	UploadPath      string
	PublicBaseURL   string
	MaxUploadBytes  int64
	MaxChainDepth   int
	MaxCommentChars int
	KafkaBroker     string
	KafkaTopic      string
	LogsToken       string
	AllowedOrigins  []string
}

func LoadSettings() Settings {
	s := Settings{
		ServerPort:      envOr("SERVER_PORT", "8080"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		UploadPath:      envOr("UPLOAD_PATH", "./uploads"),
		PublicBaseURL:   envOr("PUBLIC_BASE_URL", "/uploads"),
		MaxUploadBytes:  int64(envInt("MAX_UPLOAD_MB", 20)) << 20,
		MaxChainDepth:   envInt("MAX_CHAIN_DEPTH", 50),
		MaxCommentChars: envInt("MAX_COMMENT_LENGTH", 2000),
		KafkaBroker:     os.Getenv("KAFKA_BROKER"),
		KafkaTopic:      envOr("KAFKA_TOPIC", "photo-submissions"),
		LogsToken:       os.Getenv("LOGS_TOKEN"),
	}
	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			s.AllowedOrigins = append(s.AllowedOrigins, origin)
		}
	}
	return s
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
