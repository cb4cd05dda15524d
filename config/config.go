package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	S3        S3Config
	Site      *SiteConfig

	DatabaseURL string // Postgres; empty means SQLite
	DBPath      string
	BatchSize   int
	LogPath     string
}

type SchedulerConfig struct {
	Cron string
}

type ScraperConfig struct {
	DelayMS     int
	Concurrency int
	CookiesPath string
	SitePath    string
	ImageBatch  int
	ProxyURL    string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// SiteConfig describes the target site: base URL, the category URL suffix
// used to force full pages, and the CSS selectors. The cities to scrape
// come from the cookies file, not from here.
type SiteConfig struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	BaseURL   string            `yaml:"base_url"`
	PageQuery string            `yaml:"page_query"`
	Selectors SelectorsConfig   `yaml:"selectors"`
	Headers   map[string]string `yaml:"headers"`
}

type SelectorsConfig struct {
	Nome   string `yaml:"nome"`
	Link   string `yaml:"link"`
	Preco  string `yaml:"preco"`
	Menu   string `yaml:"menu"`
	Imagem string `yaml:"imagem"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron: getEnv("SCRAPE_CRON", "0 7 * * *"),
		},
		Scraper: ScraperConfig{
			DelayMS:     getEnvInt("SCRAPE_DELAY_MS", 500),
			Concurrency: getEnvInt("SCRAPE_CONCURRENCY", 4),
			CookiesPath: getEnv("COOKIES_PATH", "config/cookies.json"),
			SitePath:    getEnv("SITE_CONFIG", "config/site.yaml"),
			ImageBatch:  getEnvInt("IMAGE_BATCH", 50),
			ProxyURL:    os.Getenv("PROXY_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		BatchSize:   getEnvInt("BATCH_SIZE", 500),
		LogPath:     getEnv("LOG_PATH", "scraper.log"),
	}

	site, err := loadSiteConfig(cfg.Scraper.SitePath)
	if err != nil {
		return nil, err
	}
	cfg.Site = site

	return cfg, nil
}

func loadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse site config: %w", err)
	}
	if site.BaseURL == "" {
		return nil, fmt.Errorf("site config %s: base_url is required", path)
	}
	if site.PageQuery == "" {
		site.PageQuery = "?p=300"
	}
	return &site, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
