package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the settings of the server and the chat client.
type Config struct {
	Server ServerConfig
	Chat   ChatConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Chat: chat}, nil
}

// ServerConfig describes the chat server.
type ServerConfig struct {
	Addr    string
	DBPath  string
	DataDir string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	return ServerConfig{
		Addr:    addr,
		DBPath:  getEnvOrDefault("DB_PATH", "socialnet.db"),
		DataDir: getEnvOrDefault("DATA_DIR", "."),
	}, nil
}

// ChatConfig describes the client side of the chat session.
type ChatConfig struct {
	ServerURL       string
	APIURL          string
	CredentialsPath string
	Reconnect       bool
	ReconnectBase   time.Duration
	ReconnectMax    time.Duration
	ReconnectTries  int
}

func loadChatConfig() (ChatConfig, error) {
	reconnect, err := parseBoolEnv("CHAT_RECONNECT", false)
	if err != nil {
		return ChatConfig{}, err
	}

	base, err := parseOptionalIntEnv("CHAT_RECONNECT_BASE_MS")
	if err != nil {
		return ChatConfig{}, err
	}
	baseDelay := 500 * time.Millisecond
	if base != nil {
		baseDelay = time.Duration(*base) * time.Millisecond
	}

	max, err := parseOptionalIntEnv("CHAT_RECONNECT_MAX_MS")
	if err != nil {
		return ChatConfig{}, err
	}
	maxDelay := 30 * time.Second
	if max != nil {
		maxDelay = time.Duration(*max) * time.Millisecond
	}

	tries, err := parseOptionalIntEnv("CHAT_RECONNECT_RETRIES")
	if err != nil {
		return ChatConfig{}, err
	}
	retries := 0
	if tries != nil {
		retries = *tries
	}

	return ChatConfig{
		ServerURL:       getEnvOrDefault("CHAT_SERVER_URL", "ws://localhost:8080/ws"),
		APIURL:          getEnvOrDefault("CHAT_API_URL", "http://localhost:8080"),
		CredentialsPath: getEnvOrDefault("CHAT_CREDENTIALS", "credentials.json"),
		Reconnect:       reconnect,
		ReconnectBase:   baseDelay,
		ReconnectMax:    maxDelay,
		ReconnectTries:  retries,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
