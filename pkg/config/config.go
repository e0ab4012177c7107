package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"TradeSignal/pkg/cache"
	pkgkafka "TradeSignal/pkg/kafka"
	"TradeSignal/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
		// Collector ships aggregated error logs to Kafka.
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"service-logs"`
			FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
			IncludeWarn    bool          `yaml:"include_warn"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Model struct {
		Backend     string        `yaml:"backend" default:"http"` // http | mlp
		ServiceURL  string        `yaml:"service_url" default:"http://localhost:8000"`
		WeightsPath string        `yaml:"weights_path"`
		Timeout     time.Duration `yaml:"timeout" default:"3s"`
		Retries     int           `yaml:"retries" default:"2"`
	} `yaml:"model"`
	Prediction struct {
		DefaultSymbol     string        `yaml:"default_symbol" default:"AAPL"`
		DefaultWindowSize int           `yaml:"default_window_size" default:"30"`
		MaxPriceChange    float64       `yaml:"max_price_change" default:"1.0"` // fraction, 1.0 = 100%
		PredictionsTopic  string        `yaml:"predictions_topic" default:"predictions"`
		PublishKafka      bool          `yaml:"publish_kafka"`
		StoreClickHouse   bool          `yaml:"store_clickhouse"`
		BatchTimeout      time.Duration `yaml:"batch_timeout" default:"15s"`
		RateLimit         struct {
			RPS   float64 `yaml:"rps" default:"5"`
			Burst int     `yaml:"burst" default:"10"`
		} `yaml:"rate_limit"`
	} `yaml:"prediction"`
	MarketData struct {
		Source string `yaml:"source" default:"yahoo"` // yahoo | clickhouse | influxdb
		Yahoo  struct {
			BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"`
			Timeout   time.Duration `yaml:"timeout" default:"10s"`
		} `yaml:"yahoo"`
		InfluxDB struct {
			URL         string `yaml:"url" default:"http://localhost:8086"`
			Token       string `yaml:"token"`
			Org         string `yaml:"org" default:"trading"`
			Bucket      string `yaml:"bucket" default:"stocks"`
			Measurement string `yaml:"measurement" default:"stock_prices"`
		} `yaml:"influxdb"`
	} `yaml:"market_data"`
	Cache struct {
		Enabled bool               `yaml:"enabled" default:"true"`
		TTL     time.Duration      `yaml:"ttl" default:"60s"`
		Memory  cache.MemoryConfig `yaml:"memory"`
		Redis   struct {
			cache.RedisConfig `yaml:",inline"`

			Enabled bool `yaml:"enabled"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Brokers     []string                `yaml:"brokers"`
		Topic       string                  `yaml:"topic" default:"market-data"`
		Partitions  int                     `yaml:"partitions" default:"2"`
		Replication int                     `yaml:"replication" default:"1"`
		Producer    pkgkafka.ProducerConfig `yaml:"producer"`
		Consumer    pkgkafka.ConsumerConfig `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"trading"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		RestURL        string        `yaml:"rest_url" default:"https://finnhub.io/api/v1"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		PollInterval   time.Duration `yaml:"poll_interval" default:"1s"`
	} `yaml:"finnhub"`
	Ingest struct {
		Enabled      bool   `yaml:"enabled"`
		Mode         string `yaml:"mode" default:"websocket"` // websocket | poll
		Backend      string `yaml:"backend" default:"kafka"`  // kafka | clickhouse
		Consume      bool   `yaml:"consume" default:"true"`
		EnsureTopics bool   `yaml:"ensure_topics" default:"true"`
		MaxRPS       int    `yaml:"max_rps"`
		BufferSize   int    `yaml:"buffer_size" default:"2000"`
		Source       string `yaml:"source" default:"finnhub"` // source column of stored ticks
	} `yaml:"ingest"`
}

// Default returns a configuration with only the tag defaults applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from the defaults alone.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = read(path)
	}
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Finnhub.Symbols = util.SplitCSV(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("MODEL_SERVICE_URL"); v != "" {
		c.Model.ServiceURL = v
	}
	if v := getenv("MODEL_WEIGHTS_PATH"); v != "" {
		c.Model.WeightsPath = v
		c.Model.Backend = "mlp"
	}
	if v := getenv("MARKET_DATA_SOURCE"); v != "" {
		c.MarketData.Source = v
	}
	if v := getenv("INFLUXDB_URL"); v != "" {
		c.MarketData.InfluxDB.URL = v
	}
	if v := getenv("INFLUXDB_TOKEN"); v != "" {
		c.MarketData.InfluxDB.Token = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Model.Backend {
	case "http":
		if c.Model.ServiceURL == "" {
			return fmt.Errorf("model.service_url is required for the http backend")
		}
	case "mlp":
		if c.Model.WeightsPath == "" {
			return fmt.Errorf("model.weights_path is required for the mlp backend")
		}
	default:
		return fmt.Errorf("model.backend must be 'http' or 'mlp', got '%s'", c.Model.Backend)
	}
	switch c.MarketData.Source {
	case "yahoo":
	case "influxdb":
		if c.MarketData.InfluxDB.URL == "" {
			return fmt.Errorf("market_data.influxdb.url is required")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("market_data.source 'clickhouse' requires clickhouse.enabled")
		}
	default:
		return fmt.Errorf("market_data.source must be 'yahoo', 'clickhouse' or 'influxdb', got '%s'", c.MarketData.Source)
	}
	if c.Prediction.DefaultWindowSize <= 0 {
		return fmt.Errorf("prediction.default_window_size must be positive")
	}
	if c.Prediction.StoreClickHouse && !c.ClickHouse.Enabled {
		return fmt.Errorf("prediction.store_clickhouse requires clickhouse.enabled")
	}
	if (c.Prediction.PublishKafka || c.Logging.Collector.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when publishing to kafka")
	}
	if c.Ingest.Enabled {
		if c.Ingest.Backend != "kafka" && c.Ingest.Backend != "clickhouse" {
			return fmt.Errorf("ingest.backend must be 'kafka' or 'clickhouse', got '%s'", c.Ingest.Backend)
		}
		if c.Ingest.Mode != "websocket" && c.Ingest.Mode != "poll" {
			return fmt.Errorf("ingest.mode must be 'websocket' or 'poll', got '%s'", c.Ingest.Mode)
		}
		if len(c.Finnhub.Symbols) == 0 {
			return fmt.Errorf("finnhub.symbols cannot be empty")
		}
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required")
		}
		if c.Ingest.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty")
		}
		if (c.Ingest.Backend == "clickhouse" || c.Ingest.Consume) && !c.ClickHouse.Enabled {
			return fmt.Errorf("ingest to clickhouse requires clickhouse.enabled")
		}
	}
	return nil
}
