package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DiscordToken     string
	DiscordChannelID string
	DiscordAPIURL    string

	SearchLocation string
	SearchRadiusKm int
	MaxPrice       int

	UpdateIntervalSeconds int
	RetentionDays         int
	MaxWorkers            int
	FetchTimeoutSeconds   int
	FetchMode             string
	ChromeBin             string

	DataDir      string
	StoreBackend string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MetricsPort        int
	AnnounceStatus     bool
	DeliveryRatePerSec float64
	LogLevel           string
	LogFile            string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DiscordToken:     getEnv("DISCORD_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),
		DiscordAPIURL:    getEnv("DISCORD_API_URL", "https://discord.com/api/v10"),

		SearchLocation: getEnv("SEARCH_LOCATION", "Siedlce"),
		SearchRadiusKm: getEnvInt("SEARCH_RADIUS_KM", 150),
		MaxPrice:       getEnvInt("MAX_PRICE", 13000),

		UpdateIntervalSeconds: getEnvInt("UPDATE_INTERVAL_SECONDS", 900),
		RetentionDays:         getEnvInt("RETENTION_DAYS", 7),
		MaxWorkers:            getEnvInt("MAX_WORKERS", 4),
		FetchTimeoutSeconds:   getEnvInt("FETCH_TIMEOUT_SECONDS", 30),
		FetchMode:             strings.ToLower(getEnv("FETCH_MODE", "http")),
		ChromeBin:             getEnv("CHROME_BIN", ""),

		DataDir:      getEnv("DATA_DIR", "data"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "csv")),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "carbot"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "carbot"),
		PostgresDB:       getEnv("POSTGRES_DB", "carbot"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MetricsPort:        getEnvInt("METRICS_PORT", 0),
		AnnounceStatus:     getEnvBool("ANNOUNCE_STATUS", false),
		DeliveryRatePerSec: getEnvFloat("DELIVERY_RATE_PER_SEC", 1),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
	}
}

// Validate reports settings the bot cannot start with.
func (c *Config) Validate() error {
	if c.DiscordToken != "" && c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_TOKEN is set")
	}
	if c.SearchLocation == "" {
		return fmt.Errorf("SEARCH_LOCATION must not be empty")
	}
	if c.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_SECONDS must be positive, got %d", c.UpdateIntervalSeconds)
	}
	switch c.FetchMode {
	case "http", "browser":
	default:
		return fmt.Errorf("FETCH_MODE must be http or browser, got %q", c.FetchMode)
	}
	switch c.StoreBackend {
	case "csv", "postgres":
	default:
		return fmt.Errorf("STORE_BACKEND must be csv or postgres, got %q", c.StoreBackend)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// PollInterval is the pause between two cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// OffersCSVPath is the sent-offers log inside DataDir.
func (c *Config) OffersCSVPath() string {
	return filepath.Join(c.DataDir, "offers.csv")
}

func (c *Config) location() string {
	return strings.ToLower(c.SearchLocation)
}

func (c *Config) OtomotoURL() string {
	return fmt.Sprintf("https://www.otomoto.pl/osobowe/%s"+
		"?search%%5Bdist%%5D=%d"+
		"&search%%5Bfilter_float_price%%3Ato%%5D=%d"+
		"&search%%5Border%%5D=created_at_first%%3Adesc",
		c.location(), c.SearchRadiusKm, c.MaxPrice)
}

// LentoURL uses a third of the search radius, Lento's radius unit being wider.
func (c *Config) LentoURL() string {
	return fmt.Sprintf("https://%s.lento.pl/motoryzacja/samochody.html?radius=%d&price_to=%d",
		c.location(), c.SearchRadiusKm/3, c.MaxPrice)
}

// AutoplacURL expresses the price cap in thousands.
func (c *Config) AutoplacURL() string {
	return fmt.Sprintf("https://autoplac.pl/oferty/samochody-osobowe/mazowieckie/%s/cena-do-%d-tysiecy/prywatne?range=%d",
		c.location(), c.MaxPrice/1000, c.SearchRadiusKm)
}

func (c *Config) SprzedajemyURL() string {
	return fmt.Sprintf("https://sprzedajemy.pl/%s/motoryzacja/samochody-osobowe"+
		"?inp_distance=%d&inp_price%%5Bto%%5D=%d&offset=0&inp_seller_type_id=1",
		c.location(), c.SearchRadiusKm, c.MaxPrice)
}

// SourceURLs maps each source key to its search URL.
func (c *Config) SourceURLs() map[string]string {
	return map[string]string{
		"otomoto":     c.OtomotoURL(),
		"lento":       c.LentoURL(),
		"autoplac":    c.AutoplacURL(),
		"sprzedajemy": c.SprzedajemyURL(),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
