package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port    string
	DBDSN   string
	LogFile string

	// AdminToken guards mutating admin routes. Stored bcrypt-hashed at
	// startup; the raw value never leaves this struct after wiring.
	AdminToken string

	CartTTL        time.Duration
	CartSweepEvery time.Duration

	VaultThreshold       int
	VaultMinDuration     time.Duration
	VaultMaxDuration     time.Duration
	VaultStockMultiplier float64
	VaultReadyWindow     time.Duration

	DropHistoryCap int

	AutoDropEnabled       bool
	AutoDropEvery         time.Duration
	AutoDropStartVelocity float64
	AutoDropStayVelocity  float64
	AutoDropDurationMin   int
	AutoDropQty           int
}

func Load() Config {
	cfg := Config{
		Port:       envStr("PORT", "8080"),
		DBDSN:      envStr("DB_DSN", "dropshop.db"),
		LogFile:    envStr("LOG_FILE", "./dropshop.log"),
		AdminToken: envStr("ADMIN_TOKEN", "dev-admin-token"),

		CartTTL:        envMinutes("CART_TTL_MIN", 5),
		CartSweepEvery: envSeconds("CART_SWEEP_SEC", 60),

		VaultThreshold:       envInt("VAULT_THRESHOLD", 5),
		VaultMinDuration:     envMinutes("VAULT_MIN_DURATION_MIN", 120),
		VaultMaxDuration:     envMinutes("VAULT_MAX_DURATION_MIN", 180),
		VaultStockMultiplier: envFloat("VAULT_STOCK_MULTIPLIER", 1),
		VaultReadyWindow:     envMinutes("VAULT_READY_WINDOW_MIN", 240),

		DropHistoryCap: envInt("DROP_HISTORY_CAP", 20),

		AutoDropEnabled:       envStr("AUTODROP_ENABLED", "") == "1",
		AutoDropEvery:         envSeconds("AUTODROP_EVERY_SEC", 60),
		AutoDropStartVelocity: envFloat("AUTODROP_START_VELOCITY", 12),
		AutoDropStayVelocity:  envFloat("AUTODROP_STAY_VELOCITY", 3),
		AutoDropDurationMin:   envInt("AUTODROP_DURATION_MIN", 60),
		AutoDropQty:           envInt("AUTODROP_QTY", 25),
	}

	// Keep the duration window sane even with odd env values.
	if cfg.VaultMaxDuration < cfg.VaultMinDuration {
		cfg.VaultMaxDuration = cfg.VaultMinDuration
	}
	if cfg.VaultThreshold < 1 {
		cfg.VaultThreshold = 1
	}
	if cfg.DropHistoryCap < 1 {
		cfg.DropHistoryCap = 1
	}

	log.Printf("[config] PORT=%s DB_DSN=%s CART_TTL=%s VAULT_THRESHOLD=%d HISTORY_CAP=%d",
		cfg.Port, cfg.DBDSN, cfg.CartTTL, cfg.VaultThreshold, cfg.DropHistoryCap)
	return cfg
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func envMinutes(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Minute
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
