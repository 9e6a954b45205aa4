package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Relational database holding topics, categories, users and groups
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis holds post records, counters and indexes
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Posting
	TrackIPPerPost  bool
	BannedWordsPath string
	// Uploads that no post references are removed after this many minutes
	UploadsSelfDestructEnabled bool
	UploadsSelfDestructMinutes int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("ignoring invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}
	applyJSON(raw, out)
	return nil
}

func applyJSON(raw map[string]any, out *AppConfig) {
	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if arr, ok := m[key].([]any); ok {
			res := make([]string, 0, len(arr))
			for _, it := range arr {
				if s, ok := it.(string); ok {
					res = append(res, s)
				}
			}
			return res
		}
		return nil
	}

	// Grouped sections; flat keys at the top level are read as a fallback below.
	app, _ := raw["app"].(map[string]any)
	if app == nil {
		app = raw
	}
	out.AppPort = getString(app, "AppPort")
	out.JWTSecret = getString(app, "JWTSecret")
	out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
	out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
	out.AdminUsernames = getStringSlice(app, "AdminUsernames")

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	dbs, _ := raw["database"].(map[string]any)
	if dbs == nil {
		dbs = raw
	}
	out.DatabaseURI = getString(dbs, "DatabaseURI")
	out.DBHost = getString(dbs, "DBHost")
	out.DBPort = getString(dbs, "DBPort")
	out.DBUser = getString(dbs, "DBUser")
	out.DBPassword = getString(dbs, "DBPassword")
	out.DBName = getString(dbs, "DBName")

	rds, _ := raw["redis"].(map[string]any)
	if rds == nil {
		rds = raw
	}
	out.RedisHost = getString(rds, "RedisHost")
	out.RedisPort = getInt(rds, "RedisPort")
	out.RedisDB = getInt(rds, "RedisDB")
	out.RedisPassword = getString(rds, "RedisPassword")

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	posts, _ := raw["posts"].(map[string]any)
	if posts == nil {
		posts = raw
	}
	out.TrackIPPerPost = getBool(posts, "TrackIPPerPost")
	out.BannedWordsPath = getString(posts, "BannedWordsPath")

	if up, ok := raw["uploads"].(map[string]any); ok {
		out.UploadsSelfDestructEnabled = getBool(up, "SelfDestructEnabled")
		out.UploadsSelfDestructMinutes = getInt(up, "SelfDestructMinutes")
	}
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "forum"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.BannedWordsPath == "" {
		c.BannedWordsPath = filepath.Join("config", "bad-words.txt")
	}
	if c.UploadsSelfDestructMinutes == 0 {
		c.UploadsSelfDestructMinutes = 60
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	strs := map[string]*string{
		"APP_PORT":          &c.AppPort,
		"JWT_SECRET":        &c.JWTSecret,
		"GIN_MODE":          &c.GinMode,
		"GIN_PATH":          &c.GinPath,
		"DATABASE_URI":      &c.DatabaseURI,
		"DB_HOST":           &c.DBHost,
		"DB_PORT":           &c.DBPort,
		"DB_USER":           &c.DBUser,
		"DB_PASSWORD":       &c.DBPassword,
		"DB_NAME":           &c.DBName,
		"REDIS_HOST":        &c.RedisHost,
		"REDIS_PASSWORD":    &c.RedisPassword,
		"LOG_LEVEL":         &c.LogLevel,
		"LOG_PATH":          &c.LogPath,
		"BANNED_WORDS_PATH": &c.BannedWordsPath,
	}
	ints := map[string]*int{
		"RATE_LIMIT_PER_MINUTE":         &c.RateLimitPerMinute,
		"REDIS_PORT":                    &c.RedisPort,
		"REDIS_DB":                      &c.RedisDB,
		"LOG_MAX_SIZE_MB":               &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":               &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":              &c.LogMaxAgeDays,
		"UPLOADS_SELF_DESTRUCT_MINUTES": &c.UploadsSelfDestructMinutes,
	}
	bools := map[string]*bool{
		"LOG_COMPRESS":                  &c.LogCompress,
		"TRACK_IP_PER_POST":             &c.TrackIPPerPost,
		"UPLOADS_SELF_DESTRUCT_ENABLED": &c.UploadsSelfDestructEnabled,
	}
	lists := map[string]*[]string{
		"CORS_ALLOWED_ORIGINS": &c.AllowedOrigins,
		"ADMIN_USERNAMES":      &c.AdminUsernames,
	}

	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			*dst = mustParseInt(v)
		}
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true"
		}
	}
	for key, dst := range lists {
		*dst = readListEnv(key, *dst)
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// IsAdminUsername reports whether username is one of the configured admins.
func (c AppConfig) IsAdminUsername(username string) bool {
	username = strings.TrimSpace(username)
	if username == "" {
		return false
	}
	for _, u := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			return true
		}
	}
	return false
}
