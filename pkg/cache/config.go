package cache

import "time"

// MemoryConfig is the `cache.memory` config section.
type MemoryConfig struct {
	MaxSize         int           `yaml:"max_size" default:"1000"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
}

// RedisConfig holds the connection settings of the shared cache.
type RedisConfig struct {
	Addr         string        `yaml:"addr" default:"localhost:6379"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size" default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	Prefix       string        `yaml:"prefix" default:"tradesignal"`
}

func (c MemoryConfig) withFallbacks() MemoryConfig {
	if c.MaxSize <= 0 {
		c.MaxSize = 1000
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	return c
}
