package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	HTTPAddr        string
	LogFormat       string
	MaxAmountRupees int
	SessionTimeout  time.Duration
	VaultRetention  time.Duration
	VaultSweep      time.Duration
	DefaultVPA      string
	AppCatalogPath  string
	LedgerDriver    string
	LedgerDSN       string
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
	DeviceTTL       time.Duration
	InvokeTimeout   time.Duration
	SpeakReplies    bool
}

type DeviceConfig struct {
	HTTPAddr          string
	DeviceID          string
	Packages          []string
	AppsVersion       int64
	HeartbeatInterval time.Duration
	FailPayments      bool
	ServerURL         string
	MQTTBrokerURL     string
	MQTTClientID      string
	MQTTUsername      string
	MQTTPassword      string
	MQTTTopicPrefix   string
}

type CLIConfig struct {
	ServerURL      string
	DefaultVPA     string
	AppCatalogPath string
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func LoadServerConfig() (ServerConfig, error) {
	retention := time.Duration(getenvIntDefault("VAULT_RETENTION_SECONDS", 3600)) * time.Second
	cfg := ServerConfig{
		HTTPAddr:        getenvDefault("VOICEPAY_HTTP_ADDR", ":9020"),
		LogFormat:       strings.ToLower(getenvDefault("LOG_FORMAT", "text")),
		MaxAmountRupees: getenvIntDefault("MAX_TRANSACTION_AMOUNT", 50000),
		SessionTimeout:  time.Duration(getenvIntDefault("SESSION_TIMEOUT_SECONDS", 3600)) * time.Second,
		VaultRetention:  retention,
		VaultSweep:      time.Duration(getenvIntDefault("VAULT_SWEEP_INTERVAL_SECONDS", int(retention/time.Second))) * time.Second,
		DefaultVPA:      getenvDefault("DEFAULT_VPA_HANDLE", "ybl"),
		AppCatalogPath:  os.Getenv("APP_CATALOG_PATH"),
		LedgerDriver:    strings.ToLower(getenvDefault("LEDGER_DRIVER", "sqlite")),
		LedgerDSN:       getenvDefault("LEDGER_DSN", "./data/voicepay.db"),
		MQTTBrokerURL:   getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:    getenvDefault("VOICEPAY_MQTT_CLIENT_ID", "voicepay-server"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "voicepay"),
		DeviceTTL:       time.Duration(getenvIntDefault("DEVICE_TTL_SECONDS", 60)) * time.Second,
		InvokeTimeout:   time.Duration(getenvIntDefault("PAYMENT_INVOKE_TIMEOUT_SECONDS", 20)) * time.Second,
		SpeakReplies:    getenvBoolDefault("SPEAK_REPLIES", true),
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return ServerConfig{}, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.MaxAmountRupees <= 0 {
		return ServerConfig{}, fmt.Errorf("MAX_TRANSACTION_AMOUNT must be positive")
	}
	if cfg.SessionTimeout <= 0 {
		return ServerConfig{}, fmt.Errorf("SESSION_TIMEOUT_SECONDS must be positive")
	}
	if cfg.VaultRetention <= 0 {
		return ServerConfig{}, fmt.Errorf("VAULT_RETENTION_SECONDS must be positive")
	}
	if cfg.VaultSweep <= 0 {
		return ServerConfig{}, fmt.Errorf("VAULT_SWEEP_INTERVAL_SECONDS must be positive")
	}
	switch cfg.LedgerDriver {
	case "sqlite", "postgres", "none":
	default:
		return ServerConfig{}, fmt.Errorf("LEDGER_DRIVER must be sqlite, postgres or none, got %q", cfg.LedgerDriver)
	}
	if cfg.LedgerDriver == "postgres" && os.Getenv("LEDGER_DSN") == "" {
		return ServerConfig{}, fmt.Errorf("LEDGER_DSN is required when LEDGER_DRIVER=postgres")
	}

	return cfg, nil
}

func LoadDeviceConfig() DeviceConfig {
	return DeviceConfig{
		HTTPAddr:          getenvDefault("DEVICE_HTTP_ADDR", ":9021"),
		DeviceID:          getenvDefault("DEVICE_ID", "phone-debug-01"),
		Packages:          getenvListDefault("DEVICE_PACKAGES", []string{"com.phonepe.app", "net.one97.paytm"}),
		AppsVersion:       getenvInt64Default("DEVICE_APPS_VERSION", 1),
		HeartbeatInterval: time.Duration(getenvIntDefault("DEVICE_HEARTBEAT_INTERVAL_SECONDS", 10)) * time.Second,
		FailPayments:      getenvBoolDefault("DEVICE_FAIL_PAYMENTS", false),
		ServerURL:         strings.TrimRight(getenvDefault("VOICEPAY_SERVER_URL", "http://localhost:9020"), "/"),
		MQTTBrokerURL:     getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:      getenvDefault("DEVICE_MQTT_CLIENT_ID", "payment-device-debug"),
		MQTTUsername:      os.Getenv("MQTT_USERNAME"),
		MQTTPassword:      os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:   getenvDefault("MQTT_TOPIC_PREFIX", "voicepay"),
	}
}

func LoadCLIConfig() CLIConfig {
	return CLIConfig{
		ServerURL:      strings.TrimRight(getenvDefault("VOICEPAY_SERVER_URL", "http://localhost:9020"), "/"),
		DefaultVPA:     getenvDefault("DEFAULT_VPA_HANDLE", "ybl"),
		AppCatalogPath: os.Getenv("APP_CATALOG_PATH"),
	}
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvInt64Default(key string, val int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return val
	}
	return n
}

func getenvBoolDefault(key string, val bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return val
	}
	return b
}

func getenvListDefault(key string, val []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
