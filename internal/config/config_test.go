package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":                "test",
		"APP_PORT":               "8080",
		"DB_USER":                "parkd",
		"DB_HOST":                "127.0.0.1",
		"DB_PORT":                "3306",
		"DB_NAME":                "parking",
		"JWT_SECRET":             "secret",
		"ACCESS_TOKEN_TTL_MIN":   "15",
		"REFRESH_TOKEN_TTL_DAYS": "7",
		"BCRYPT_COST":            "4",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_POLICY", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("EVENTS_BACKEND", "")
	t.Setenv("MQTT_BROKER_URL", "")
	t.Setenv("SENSOR_SQS_QUEUE_URL", "")

	cfg := Load()
	if cfg.Port != "8080" || cfg.AccessTTLMin != 15 || cfg.BcryptCost != 4 {
		t.Fatalf("unexpected required values: %+v", cfg)
	}
	if cfg.PaymentPolicy != "owner" || cfg.OpenPayment() {
		t.Errorf("PaymentPolicy = %q, want owner", cfg.PaymentPolicy)
	}
	if cfg.StoreBackend != "mysql" {
		t.Errorf("StoreBackend = %q, want mysql", cfg.StoreBackend)
	}
	if cfg.Events.Backend != "amqp" {
		t.Errorf("Events.Backend = %q, want amqp", cfg.Events.Backend)
	}
	if cfg.Sensor.MQTTEnabled() || cfg.Sensor.SQSEnabled() {
		t.Error("sensor feeds should be disabled without URLs")
	}
	if cfg.Sensor.MQTTTopic != "parking/slots/+/occupancy" {
		t.Errorf("MQTTTopic = %q", cfg.Sensor.MQTTTopic)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_POLICY", "OPEN")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("EVENTS_BACKEND", "nats")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MQTT_BROKER_URL", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "7")
	t.Setenv("SENSOR_SQS_QUEUE_URL", "https://sqs.eu-west-1.amazonaws.com/1/sensors")
	t.Setenv("SENSOR_SQS_WAIT", "45s")
	t.Setenv("STREAM_ALLOWED_ORIGINS", " https://dash.example, ,https://ops.example")

	cfg := Load()
	if !cfg.OpenPayment() {
		t.Error("PAYMENT_POLICY=OPEN should enable open payment")
	}
	if cfg.StoreBackend != "memory" || cfg.Events.Backend != "nats" {
		t.Errorf("backends = %q/%q", cfg.StoreBackend, cfg.Events.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if !cfg.Sensor.MQTTEnabled() || !cfg.Sensor.SQSEnabled() {
		t.Error("sensor feeds should be enabled")
	}
	if cfg.Sensor.MQTTQoS != 1 {
		t.Errorf("out of range QoS should fall back to 1, got %d", cfg.Sensor.MQTTQoS)
	}
	if cfg.Sensor.SQSWait != 20*time.Second {
		t.Errorf("SQSWait = %v, want clamp to 20s", cfg.Sensor.SQSWait)
	}
	if len(cfg.StreamOrigins) != 2 || cfg.StreamOrigins[1] != "https://ops.example" {
		t.Errorf("StreamOrigins = %q", cfg.StreamOrigins)
	}
}

func TestMemoryBackendNeedsNoDatabase(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
		t.Setenv(k, "")
	}
	t.Setenv("STORE_BACKEND", "memory")

	cfg := Load()
	if cfg.StoreBackend != "memory" {
		t.Fatalf("StoreBackend = %q, want memory", cfg.StoreBackend)
	}
	if cfg.DBUser != "" || cfg.DBHost != "" {
		t.Errorf("DB settings = %q@%q, want empty", cfg.DBUser, cfg.DBHost)
	}
}

func TestMySQLBackendReadsDatabase(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "mysql")

	cfg := Load()
	if cfg.DBUser != "parkd" || cfg.DBHost != "127.0.0.1" || cfg.DBPort != "3306" || cfg.DBName != "parking" {
		t.Errorf("DB settings = %+v", cfg)
	}
}

func TestUnknownEnumFallsBack(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	if got := oneOf("STORE_BACKEND", "mysql", "mysql", "memory"); got != "mysql" {
		t.Errorf("oneOf = %q, want mysql", got)
	}
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_BURST", "")

	rl := LoadRateLimitConfig()
	if rl.Capacity != 1 || rl.RefillTokens != 1 {
		t.Errorf("capacity/refill = %d/%d, want 1/1", rl.Capacity, rl.RefillTokens)
	}
	if rl.TTL != 10*time.Second {
		t.Errorf("TTL = %v, want 10s", rl.TTL)
	}
}

func TestCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	c := LoadCacheConfig()
	if !c.Methods["GET"] || !c.Methods["HEAD"] || len(c.Methods) != 2 {
		t.Errorf("Methods = %v", c.Methods)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"YES", false, true},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("PARKD_TEST_BOOL", tt.val)
		if got := envBool("PARKD_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("envBool(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}
