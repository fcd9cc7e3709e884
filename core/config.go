package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage engines
const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
	EngineMongo    = "mongo"
)

type (
	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address
		StorageEngine    string

		Server   ServerConfig
		Database DatabaseConfig
		Mongo    MongoConfig
		Redis    RedisConfig
		RBAC     RBACConfig
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	MongoConfig struct {
		URI            string
		Database       string
		ConnectTimeout time.Duration
		MaxPoolSize    uint64
	}

	RedisConfig struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}

	RBACConfig struct {
		// ActionPolicy overrides the level an action requires, e.g. {"delete": "View Access"}.
		ActionPolicy map[string]string
		// SoftLookupErrors lets every gate pass requests through on storage errors instead of failing with 500.
		SoftLookupErrors bool
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the configuration of the current ENV (DEV by default; TEST, QA, PROD)
// from the environment and the optional config/.env.<env> file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "EduTool")
	v.SetDefault("secretKey", "wq8#r-4u!y0b$1z%kt@2c^sd7&me+pfx(9n)h_lj5ga=o3iv6")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("storageEngine", EngineMemory)

	v.SetDefault("serverHost", "0.0.0.0:8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("disableReqLogs", false)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbUser", "edutool")
	v.SetDefault("dbPassword", "edutool")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "edutool")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("mongoUri", "mongodb://localhost:27017")
	v.SetDefault("mongoDatabase", "edutool")
	v.SetDefault("mongoConnectTimeout", 10*time.Second)
	v.SetDefault("mongoMaxPoolSize", uint64(100))

	v.SetDefault("redisEnabled", false)
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDb", 0)
	v.SetDefault("redisTtl", 5*time.Minute)

	v.SetDefault("rbacSoftLookupErrors", false)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	loadDotEnv(filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env)))
	v.AutomaticEnv()

	conf := &Config{
		Env:            env,
		Build:          v.GetString("build"),
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		AppName:        v.GetString("appName"),
		SecretKey:      v.GetString("secretKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
		StorageEngine: strings.ToLower(v.GetString("storageEngine")),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			DebugHost:          v.GetString("serverDebugHost"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
			DisableReqLogs:     v.GetBool("disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Mongo: MongoConfig{
			URI:            v.GetString("mongoUri"),
			Database:       v.GetString("mongoDatabase"),
			ConnectTimeout: v.GetDuration("mongoConnectTimeout"),
			MaxPoolSize:    v.GetUint64("mongoMaxPoolSize"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redisEnabled"),
			Addr:     v.GetString("redisAddr"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDb"),
			TTL:      v.GetDuration("redisTtl"),
		},
		RBAC: RBACConfig{
			ActionPolicy:     parseActionPolicy(v.GetString("rbacActionPolicy")),
			SoftLookupErrors: v.GetBool("rbacSoftLookupErrors"),
		},
	}
	return conf
}

// parseActionPolicy reads "action=Level,action=Level" pairs.
func parseActionPolicy(s string) map[string]string {
	policy := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		act, lvl := CleanString(kv[0], true /* lower */), CleanString(kv[1])
		if act != "" && lvl != "" {
			policy[act] = lvl
		}
	}
	return policy
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			log.Fatalf("config.godotenv(%s): %v", path, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", path, err)
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s %s (env=%s, storage=%s)", c.AppName, c.Build, c.Env, c.StorageEngine)
}
