package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tickerSymbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)

// Config holds all runtime configuration for the broker simulator.
type Config struct {
	Port            int
	LogLevel        string
	BrokerName      string
	Tickers         map[string]int64 // symbol → initial price in cents
	MarketOpen      bool
	TickInterval    time.Duration
	MaxPriceStep    int64
	BcryptCost      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	brokerName := getStr("BROKER_NAME", "brokersim")

	tickers, err := parseTickers(getStr("TICKERS", "AAPL:19000,MSFT:41000,GOOG:17500"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICKERS: %w", err)
	}

	marketOpen, err := getBool("MARKET_OPEN", true)
	if err != nil {
		return nil, fmt.Errorf("invalid MARKET_OPEN: %w", err)
	}

	tickInterval, err := getDuration("TICK_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	if tickInterval < 0 {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %v must not be negative", tickInterval)
	}

	maxPriceStep, err := getInt("MAX_PRICE_STEP", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PRICE_STEP: %w", err)
	}
	if maxPriceStep < 0 {
		return nil, fmt.Errorf("invalid MAX_PRICE_STEP: %d must not be negative", maxPriceStep)
	}

	bcryptCost, err := getInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	if bcryptCost < 4 || bcryptCost > 31 {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %d, must be between 4 and 31", bcryptCost)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		BrokerName:      brokerName,
		Tickers:         tickers,
		MarketOpen:      marketOpen,
		TickInterval:    tickInterval,
		MaxPriceStep:    int64(maxPriceStep),
		BcryptCost:      bcryptCost,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// parseTickers parses a comma-separated list of SYMBOL:PRICE pairs, with
// prices in cents.
func parseTickers(s string) (map[string]int64, error) {
	tickers := make(map[string]int64)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		symbol, priceStr, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%q is not SYMBOL:PRICE", entry)
		}
		if !tickerSymbolRegex.MatchString(symbol) {
			return nil, fmt.Errorf("symbol %q must match ^[A-Z]{1,10}$", symbol)
		}
		price, err := strconv.ParseInt(priceStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", symbol, err)
		}
		if price <= 0 {
			return nil, fmt.Errorf("price for %s must be positive, got %d", symbol, price)
		}
		if _, dup := tickers[symbol]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", symbol)
		}
		tickers[symbol] = price
	}
	if len(tickers) == 0 {
		return nil, errors.New("at least one ticker is required")
	}
	return tickers, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
