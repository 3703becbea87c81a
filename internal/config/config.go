// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Refresh     RefreshConfig
	Scoring     ScoringConfig
	Tiers       TierConfig
	Matcher     MatcherConfig
	Scraper     ScraperConfig
	Ebay        EbayConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

// RefreshConfig tunes the refresh orchestrator: pool sizing, concurrency,
// and the deferral intervals for the non-fetch outcomes.
type RefreshConfig struct {
	BatchSize          int
	PoolMultiplier     int
	PoolCap            int
	MaxConcurrency     int
	StaleErrorLimit    int           // consecutive errors before a listing is marked stale
	ErrorRetryAfter    time.Duration // no usable data returned
	BotBlockRetryAfter time.Duration // bot protection, deferred to a human
	UnverifiedDeferral time.Duration // deal not admin-verified: no fetch at all
	NoSourceDeferral   time.Duration // no API integration and scraping unavailable
	Interval           time.Duration // background loop cadence
	SweepInterval      time.Duration
	IngestInterval     time.Duration
}

// ScoringConfig holds the candidate-scorer weights. Each weight contributes
// only when its signal fires; see refresh.Rank.
type ScoringConfig struct {
	ActiveViewWeight      float64 // clicks in the last 5 minutes > 0
	BestDealWeight        float64 // listing is the product's current best deal
	PrimaryWeight         float64 // listing is marked primary for its deal
	ClickTrendMaxWeight   float64 // scaled by 7d clicks / pool max
	PopularWeight         float64 // 7d clicks >= PopularClickThreshold
	PopularClickThreshold int64
	StalenessWeight       float64 // per minute since last check
	NeverCheckedMinutes   float64 // sentinel staleness for never-checked listings
	VolatileMultiplier    float64 // staleness multiplier for volatile marketplaces
	RetryBonus            float64 // error count in (0, RetryMaxErrors]
	RetryMaxErrors        int
	NoisyPenalty          float64 // error count > NoisyErrorThreshold
	NoisyErrorThreshold   int
	HighValueWeight       float64
	HighValueThreshold    float64
}

// TierRange is a [Min,Max] next-check window; volatile marketplaces use the
// tighter volatile window within the same tier.
type TierRange struct {
	Min         time.Duration
	Max         time.Duration
	VolatileMin time.Duration
	VolatileMax time.Duration
}

type TierConfig struct {
	TierA         TierRange
	TierB         TierRange
	TierC         TierRange
	TierDInterval time.Duration // fixed, no jitter
	RiskInterval  time.Duration // fixed short interval after a price/status change
}

type MatcherConfig struct {
	CoverageThreshold  float64
	PriceBandLow       float64 // × MSRP
	PriceBandHigh      float64 // × MSRP
	PackRatioThreshold float64
	ScoreThreshold     float64
	GTINScoreBonus     float64 // composite-score weight for a GTIN identity
	BrandScoreBonus    float64 // brand match against the product
	MPNScoreBonus      float64 // candidate carries an MPN
	PackAgreeBonus     float64 // explicit pack quantities agree
	LotPenalty         float64 // lot/assorted/variety title
	TopKPerGroup       int
	MinFeedbackPct     float64
	MinFeedbackScore   int64
	RequireTopRated    bool
	AccessoryKeywords  []string
	StopWordsPath      string // optional override; built-in defaults otherwise
}

type ScraperConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// EbayConfig enables the API-backed eBay client; an empty token leaves the
// marketplace on the scrape fallback.
type EbayConfig struct {
	BaseURL  string
	APIToken string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "dealhawk"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Refresh: RefreshConfig{
			BatchSize:          getEnvAsInt("REFRESH_BATCH_SIZE", 50),
			PoolMultiplier:     getEnvAsInt("REFRESH_POOL_MULTIPLIER", 4),
			PoolCap:            getEnvAsInt("REFRESH_POOL_CAP", 500),
			MaxConcurrency:     getEnvAsInt("REFRESH_MAX_CONCURRENCY", 5),
			StaleErrorLimit:    getEnvAsInt("REFRESH_STALE_ERROR_LIMIT", 10),
			ErrorRetryAfter:    getEnvAsDuration("REFRESH_ERROR_RETRY_AFTER", 12*time.Hour),
			BotBlockRetryAfter: getEnvAsDuration("REFRESH_BOT_BLOCK_RETRY_AFTER", 24*time.Hour),
			UnverifiedDeferral: getEnvAsDuration("REFRESH_UNVERIFIED_DEFERRAL", 48*time.Hour),
			NoSourceDeferral:   getEnvAsDuration("REFRESH_NO_SOURCE_DEFERRAL", 48*time.Hour),
			Interval:           getEnvAsDuration("REFRESH_INTERVAL", 5*time.Minute),
			SweepInterval:      getEnvAsDuration("REFRESH_SWEEP_INTERVAL", 15*time.Minute),
			IngestInterval:     getEnvAsDuration("INGEST_INTERVAL", 6*time.Hour),
		},
		Scoring: ScoringConfig{
			ActiveViewWeight:      getEnvAsFloat("SCORE_ACTIVE_VIEW_WEIGHT", 100),
			BestDealWeight:        getEnvAsFloat("SCORE_BEST_DEAL_WEIGHT", 50),
			PrimaryWeight:         getEnvAsFloat("SCORE_PRIMARY_WEIGHT", 25),
			ClickTrendMaxWeight:   getEnvAsFloat("SCORE_CLICK_TREND_MAX_WEIGHT", 40),
			PopularWeight:         getEnvAsFloat("SCORE_POPULAR_WEIGHT", 20),
			PopularClickThreshold: int64(getEnvAsInt("SCORE_POPULAR_CLICK_THRESHOLD", 25)),
			StalenessWeight:       getEnvAsFloat("SCORE_STALENESS_WEIGHT", 0.01),
			NeverCheckedMinutes:   getEnvAsFloat("SCORE_NEVER_CHECKED_MINUTES", 100000),
			VolatileMultiplier:    getEnvAsFloat("SCORE_VOLATILE_MULTIPLIER", 2.0),
			RetryBonus:            getEnvAsFloat("SCORE_RETRY_BONUS", 10),
			RetryMaxErrors:        getEnvAsInt("SCORE_RETRY_MAX_ERRORS", 3),
			NoisyPenalty:          getEnvAsFloat("SCORE_NOISY_PENALTY", 500),
			NoisyErrorThreshold:   getEnvAsInt("SCORE_NOISY_ERROR_THRESHOLD", 10),
			HighValueWeight:       getEnvAsFloat("SCORE_HIGH_VALUE_WEIGHT", 15),
			HighValueThreshold:    getEnvAsFloat("SCORE_HIGH_VALUE_THRESHOLD", 200),
		},
		Tiers: TierConfig{
			TierA: TierRange{
				Min:         getEnvAsDuration("TIER_A_MIN", 15*time.Minute),
				Max:         getEnvAsDuration("TIER_A_MAX", 60*time.Minute),
				VolatileMin: getEnvAsDuration("TIER_A_VOLATILE_MIN", 10*time.Minute),
				VolatileMax: getEnvAsDuration("TIER_A_VOLATILE_MAX", 30*time.Minute),
			},
			TierB: TierRange{
				Min:         getEnvAsDuration("TIER_B_MIN", 2*time.Hour),
				Max:         getEnvAsDuration("TIER_B_MAX", 6*time.Hour),
				VolatileMin: getEnvAsDuration("TIER_B_VOLATILE_MIN", 1*time.Hour),
				VolatileMax: getEnvAsDuration("TIER_B_VOLATILE_MAX", 3*time.Hour),
			},
			TierC: TierRange{
				Min:         getEnvAsDuration("TIER_C_MIN", 12*time.Hour),
				Max:         getEnvAsDuration("TIER_C_MAX", 36*time.Hour),
				VolatileMin: getEnvAsDuration("TIER_C_VOLATILE_MIN", 6*time.Hour),
				VolatileMax: getEnvAsDuration("TIER_C_VOLATILE_MAX", 18*time.Hour),
			},
			TierDInterval: getEnvAsDuration("TIER_D_INTERVAL", 7*24*time.Hour),
			RiskInterval:  getEnvAsDuration("TIER_RISK_INTERVAL", 10*time.Minute),
		},
		Matcher: MatcherConfig{
			CoverageThreshold:  getEnvAsFloat("MATCH_COVERAGE_THRESHOLD", 0.6),
			PriceBandLow:       getEnvAsFloat("MATCH_PRICE_BAND_LOW", 0.3),
			PriceBandHigh:      getEnvAsFloat("MATCH_PRICE_BAND_HIGH", 1.5),
			PackRatioThreshold: getEnvAsFloat("MATCH_PACK_RATIO_THRESHOLD", 2.5),
			ScoreThreshold:     getEnvAsFloat("MATCH_SCORE_THRESHOLD", 0.5),
			GTINScoreBonus:     getEnvAsFloat("MATCH_SCORE_GTIN_BONUS", 0.4),
			BrandScoreBonus:    getEnvAsFloat("MATCH_SCORE_BRAND_BONUS", 0.15),
			MPNScoreBonus:      getEnvAsFloat("MATCH_SCORE_MPN_BONUS", 0.1),
			PackAgreeBonus:     getEnvAsFloat("MATCH_SCORE_PACK_BONUS", 0.1),
			LotPenalty:         getEnvAsFloat("MATCH_SCORE_LOT_PENALTY", 0.25),
			TopKPerGroup:       getEnvAsInt("MATCH_TOP_K_PER_GROUP", 3),
			MinFeedbackPct:     getEnvAsFloat("MATCH_MIN_FEEDBACK_PCT", 95.0),
			MinFeedbackScore:   int64(getEnvAsInt("MATCH_MIN_FEEDBACK_SCORE", 100)),
			RequireTopRated:    getEnvAsBool("MATCH_REQUIRE_TOP_RATED", false),
			AccessoryKeywords:  getEnvAsSlice("MATCH_ACCESSORY_KEYWORDS", defaultAccessoryKeywords),
			StopWordsPath:      getEnv("MATCH_STOP_WORDS_PATH", ""),
		},
		Scraper: ScraperConfig{
			UserAgent: getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0 (compatible; DealhawkBot/1.0)"),
			Timeout:   getEnvAsDuration("SCRAPER_TIMEOUT", 20*time.Second),
		},
		Ebay: EbayConfig{
			BaseURL:  getEnv("EBAY_API_BASE_URL", "https://api.ebay.com"),
			APIToken: getEnv("EBAY_API_TOKEN", ""),
		},
	}

	return config, config.Validate()
}

var defaultAccessoryKeywords = []string{
	"case for", "cover for", "charger for", "cable for", "skin for",
	"screen protector", "replacement part", "mount for", "stand for",
	"adapter for", "battery for", "holder for", "strap for",
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Refresh.MaxConcurrency < 1 {
		return fmt.Errorf("refresh concurrency must be at least 1")
	}

	if c.Matcher.PackRatioThreshold < 1 {
		return fmt.Errorf("pack ratio threshold must be at least 1")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
