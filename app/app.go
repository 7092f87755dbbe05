package app

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cabinetkey/db"
	"cabinetkey/lending"
	"cabinetkey/notify"
	"cabinetkey/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Log    *slog.Logger
	Config Config

	appSess *session.AppSessionStore
}

// Config 从环境变量读取
type Config struct {
	Postgres       db.PostgresConfig
	RedisAddr      string
	RedisPwd       string
	WebOrigin      string
	Port           string
	SessionTTL     time.Duration
	AdminEmails    []string
	JWTSecret      string
	SweepInterval  time.Duration
	LoanLimits     lending.LoanLimits
	OverdueChannel string
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

// New wires an App around already opened connections.
func New(cfg Config, gdb *gorm.DB, rdb *redis.Client) *App {
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)
	return &App{
		Router:  r,
		DB:      gdb,
		RDB:     rdb,
		Log:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
		Config:  cfg,
		appSess: session.NewAppSessionStore(rdb, cfg.SessionTTL),
	}
}

func MustNew() *App {
	cfg := LoadConfig()

	// --- DB: Postgres ---
	dbConn, err := db.ConnectDB(cfg.Postgres)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	return New(cfg, dbConn, rdb)
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func LoadConfig() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	hours := func(k string, def time.Duration) time.Duration {
		n, err := strconv.Atoi(get(k, ""))
		if err != nil || n <= 0 {
			return def
		}
		return time.Duration(n) * time.Hour
	}

	ttl := 24 * time.Hour
	if n, err := strconv.Atoi(get("SESSION_TTL_SECONDS", "86400")); err == nil && n > 0 {
		ttl = time.Duration(n) * time.Second
	}
	sweep := time.Minute
	if d, err := time.ParseDuration(get("SWEEP_INTERVAL", "60s")); err == nil && d > 0 {
		sweep = d
	}
	limits := lending.DefaultLoanLimits()
	limits.Min = hours("MIN_LOAN_HOURS", limits.Min)
	limits.Max = hours("MAX_LOAN_HOURS", limits.Max)
	limits.Default = hours("DEFAULT_LOAN_HOURS", limits.Default)

	adminsCSV := os.Getenv("ADMIN_EMAILS") // 例如: "admin@ex.com,ops@ex.com"
	var admins []string
	for _, s := range strings.Split(adminsCSV, ",") {
		if t := strings.TrimSpace(s); t != "" {
			admins = append(admins, strings.ToLower(t))
		}
	}
	return Config{
		Postgres: db.PostgresConfig{
			Host:     get("DB_HOST", "127.0.0.1"),
			User:     get("DB_USER", "postgres"),
			Password: get("DB_PASSWORD", "postgres"),
			Name:     get("DB_NAME", "cabinet"),
			Port:     get("DB_PORT", "5432"),
		},
		RedisAddr:      get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:       os.Getenv("REDIS_PASSWORD"),
		WebOrigin:      get("WEB_ORIGIN", "http://localhost:5173"),
		Port:           get("PORT", "3001"),
		SessionTTL:     ttl,
		AdminEmails:    admins,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		SweepInterval:  sweep,
		LoanLimits:     limits,
		OverdueChannel: get("OVERDUE_CHANNEL", notify.DefaultOverdueChannel),
	}
}
