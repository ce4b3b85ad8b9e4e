package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "copee_db", cfg.Database.Database)
				assert.Equal(t, "uploads_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "uploads_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "upload-api-service", cfg.App.Name)
				assert.Equal(t, 5, cfg.Pipeline.Concurrency)
				assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
				assert.Equal(t, 2*time.Second, cfg.Pipeline.BackoffBase)
				assert.Equal(t, int64(1000), cfg.Pipeline.UploadCost)
				assert.Equal(t, time.Minute, cfg.Pipeline.StallSweepEvery)
				assert.Equal(t, 5*time.Minute, cfg.Pipeline.StallAge)
				assert.Equal(t, 3, cfg.Media.DownloadAttempts)
				assert.Equal(t, 60*time.Second, cfg.Media.UploadTimeout)
				assert.Equal(t, "https://shopee.vn/", cfg.Media.SourceReferer)
			}
		})
	}
}

func validBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "copee_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "uploads_exchange",
			},
			Queue: QueueConfig{
				Name: "uploads_queue",
			},
		},
		Pipeline: PipelineConfig{
			Concurrency:     5,
			MaxRetries:      3,
			BackoffBase:     2 * time.Second,
			BackoffMax:      30 * time.Second,
			UploadCost:      1000,
			StallSweepEvery: time.Minute,
			StallAge:        5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Media: MediaConfig{
			DownloadAttempts: 3,
			DownloadTimeout:  30 * time.Second,
			UploadTimeout:    60 * time.Second,
			BackoffBase:      time.Second,
			BackoffMax:       5 * time.Second,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Pipeline.Concurrency = 0 },
			wantErr:   true,
			errString: "pipeline concurrency must be greater than 0",
		},
		{
			name:      "zero max retries",
			mutate:    func(c *Config) { c.Pipeline.MaxRetries = 0 },
			wantErr:   true,
			errString: "pipeline max_retries must be greater than 0",
		},
		{
			name:      "backoff max below base",
			mutate:    func(c *Config) { c.Pipeline.BackoffMax = time.Second },
			wantErr:   true,
			errString: "backoff_max must not be less than backoff_base",
		},
		{
			name:      "zero upload cost",
			mutate:    func(c *Config) { c.Pipeline.UploadCost = 0 },
			wantErr:   true,
			errString: "pipeline upload_cost must be greater than 0",
		},
		{
			name:      "zero stall sweep interval",
			mutate:    func(c *Config) { c.Pipeline.StallSweepEvery = 0 },
			wantErr:   true,
			errString: "pipeline stall_sweep_every must be greater than 0",
		},
		{
			name:      "zero download attempts",
			mutate:    func(c *Config) { c.Media.DownloadAttempts = 0 },
			wantErr:   true,
			errString: "media download_attempts must be greater than 0",
		},
		{
			name:      "zero upload timeout",
			mutate:    func(c *Config) { c.Media.UploadTimeout = 0 },
			wantErr:   true,
			errString: "media upload_timeout must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
