package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
		// Origin is where the edge forwards requests. Defaults to the in-process app listener.
		Origin    string `yaml:"origin"`
		AppAddr   string `yaml:"appAddr"`
		PublicURL string `yaml:"publicURL"`
	} `yaml:"server"`

	Storage struct {
		DataDir string `yaml:"dataDir"`
		RAM     struct {
			Max ByteSize `yaml:"max"`
		} `yaml:"ram"`
	} `yaml:"storage"`

	Offline Offline `yaml:"offline"`

	Backend struct {
		DBPath      string   `yaml:"dbPath"`
		BlobDir     string   `yaml:"blobDir"`
		MediaPrefix string   `yaml:"mediaPrefix"`
		RedisAddr   string   `yaml:"redisAddr"`
		ListingTTL  Duration `yaml:"listingTTL"`
	} `yaml:"backend"`

	Auth struct {
		JWTSecret    string   `yaml:"jwtSecret"`
		SessionTTL   Duration `yaml:"sessionTTL"`
		DemoEmail    string   `yaml:"demoEmail"`
		DemoPassword string   `yaml:"demoPassword"`
		DemoEnabled  *bool    `yaml:"demoEnabled"`
		AllowSignup  bool     `yaml:"allowSignup"`
	} `yaml:"auth"`

	Upload Upload `yaml:"upload"`

	Jobs struct {
		Sync      string `yaml:"sync"`
		Reconcile string `yaml:"reconcile"`
	} `yaml:"jobs"`

	Site Site `yaml:"site"`
}

type Offline struct {
	StaticCache   string   `yaml:"staticCache"`
	DynamicCache  string   `yaml:"dynamicCache"`
	StaticFiles   []string `yaml:"staticFiles"`
	Bypass        []string `yaml:"bypass"`
	SyncPath      string   `yaml:"syncPath"`
	LogStatsEvery Duration `yaml:"logStatsEvery"`
	InstallRetry  Duration `yaml:"installRetry"`

	// compiled
	matchers []Matcher
}

type Upload struct {
	MaxFileSize   ByteSize `yaml:"maxFileSize"`
	CompressAbove ByteSize `yaml:"compressAbove"`
	MaxWidth      int      `yaml:"maxWidth"`
	MaxPixels     int64    `yaml:"maxPixels"`
	JPEGQuality   int      `yaml:"jpegQuality"`
	SettleDelay   Duration `yaml:"settleDelay"`
}

type Site struct {
	Name     string `yaml:"name"`
	Legal    string `yaml:"legal"`
	Phone    string `yaml:"phone"`
	Email    string `yaml:"email"`
	Facebook string `yaml:"facebook"`
	Address  string `yaml:"address"`
}

// Duration reads Go duration strings ("1500ms", "5m") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, err
		}
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() Config {
	var cfg Config
	_ = cfg.finish()
	return cfg
}

// Finish re-applies defaults and validation after callers override fields.
func (c *Config) Finish() error { return c.finish() }

func (c *Config) finish() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.AppAddr == "" {
		c.Server.AppAddr = "127.0.0.1:8081"
	}
	if c.Server.Origin == "" {
		c.Server.Origin = "http://" + c.Server.AppAddr
	}
	c.Server.Origin = strings.TrimRight(c.Server.Origin, "/")
	u, err := url.Parse(c.Server.Origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server.origin must be an absolute http(s) URL, got %q", c.Server.Origin)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Storage.RAM.Max == 0 {
		c.Storage.RAM.Max = 64 << 20
	}

	if err := c.Offline.finish(); err != nil {
		return err
	}

	if c.Backend.DBPath == "" {
		c.Backend.DBPath = filepath.Join(c.Storage.DataDir, "ntes.db")
	}
	if c.Backend.BlobDir == "" {
		c.Backend.BlobDir = filepath.Join(c.Storage.DataDir, "blobs")
	}
	if c.Backend.MediaPrefix == "" {
		c.Backend.MediaPrefix = "/media/"
	}
	if !strings.HasPrefix(c.Backend.MediaPrefix, "/") || !strings.HasSuffix(c.Backend.MediaPrefix, "/") {
		return fmt.Errorf("backend.mediaPrefix must start and end with '/', got %q", c.Backend.MediaPrefix)
	}
	if c.Backend.ListingTTL == 0 {
		c.Backend.ListingTTL = Duration(10 * time.Minute)
	}

	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = Duration(12 * time.Hour)
	}
	if c.Auth.DemoEmail == "" {
		c.Auth.DemoEmail = "admin@ntes.com"
	}
	if c.Auth.DemoPassword == "" {
		c.Auth.DemoPassword = "admin123"
	}
	if c.Auth.DemoEnabled == nil {
		on := true
		c.Auth.DemoEnabled = &on
	}

	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = 50 << 20
	}
	if c.Upload.CompressAbove == 0 {
		c.Upload.CompressAbove = 2 << 20
	}
	if c.Upload.MaxWidth == 0 {
		c.Upload.MaxWidth = 1920
	}
	if c.Upload.MaxPixels == 0 {
		c.Upload.MaxPixels = 50_000_000
	}
	if c.Upload.JPEGQuality == 0 {
		c.Upload.JPEGQuality = 80
	}
	if c.Upload.JPEGQuality < 1 || c.Upload.JPEGQuality > 100 {
		return fmt.Errorf("upload.jpegQuality must be within 1..100, got %d", c.Upload.JPEGQuality)
	}
	if c.Upload.SettleDelay == 0 {
		c.Upload.SettleDelay = Duration(1500 * time.Millisecond)
	}

	if c.Jobs.Sync == "" {
		c.Jobs.Sync = "*/5 * * * *"
	}
	if c.Jobs.Reconcile == "" {
		c.Jobs.Reconcile = "17 * * * *"
	}

	c.Site.applyDefaults()
	return nil
}

func (o *Offline) finish() error {
	if o.StaticCache == "" {
		o.StaticCache = "ntes-static-v1"
	}
	if o.DynamicCache == "" {
		o.DynamicCache = "ntes-dynamic-v1"
	}
	if o.StaticCache == o.DynamicCache {
		return fmt.Errorf("offline.staticCache and offline.dynamicCache must differ")
	}
	if len(o.StaticFiles) == 0 {
		o.StaticFiles = []string{"/", "/manifest.json", "/favicon.ico"}
	}
	for i, p := range o.StaticFiles {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("offline.staticFiles[%d]: %q is not an absolute path", i, p)
		}
	}
	if len(o.Bypass) == 0 {
		o.Bypass = []string{"Contains(/api/)", "Contains(firestore.googleapis.com)"}
	}
	o.matchers = o.matchers[:0]
	for i, expr := range o.Bypass {
		ms, err := ParseMatch(expr)
		if err != nil {
			return fmt.Errorf("offline.bypass[%d]: %w", i, err)
		}
		o.matchers = append(o.matchers, ms...)
	}
	if o.SyncPath == "" {
		o.SyncPath = "/api/contacts"
	}
	if o.InstallRetry == 0 {
		o.InstallRetry = Duration(30 * time.Second)
	}
	return nil
}

// Bypassed reports whether rawURL matches any bypass rule.
func (o *Offline) Bypassed(rawURL string) bool {
	for _, m := range o.matchers {
		if m.Match(rawURL) {
			return true
		}
	}
	return false
}

func (s *Site) applyDefaults() {
	if s.Name == "" {
		s.Name = "NTES"
	}
	if s.Legal == "" {
		s.Legal = "Nkundlande Tech & Elec Solutions (PTY) LTD"
	}
	if s.Phone == "" {
		s.Phone = "+2766 370 6956"
	}
	if s.Email == "" {
		s.Email = "nkundlandetechandelcsolutions@gmail.com"
	}
	if s.Facebook == "" {
		s.Facebook = "https://facebook.com/NTES"
	}
	if s.Address == "" {
		s.Address = "Stand No 2785 Kwazanele: Breyten, Mpumalanga, 2330"
	}
}
