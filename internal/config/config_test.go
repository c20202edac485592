package config

import "testing"

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 0},
		Database: DatabaseConfig{Driver: "memory"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "postgres"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}

	expected := `database.driver must be "memory" or "redis", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_RedisRequiresAddrs(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "redis"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_MemoryNeedsNoAddrs(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "memory"},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected driver=memory, got %s", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Search.RRFK != 60 {
		t.Errorf("expected RRFK=60, got %d", cfg.Search.RRFK)
	}
	if cfg.Search.Oversampling != 2 {
		t.Errorf("expected Oversampling=2, got %d", cfg.Search.Oversampling)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Driver: "redis", Addrs: []string{"localhost:6379"}},
		Search:   SearchConfig{RRFK: 10, Oversampling: 4},
	}
	cfg.ApplyDefaults()

	if cfg.Database.Driver != "redis" {
		t.Errorf("driver overwritten: %s", cfg.Database.Driver)
	}
	if cfg.Search.RRFK != 10 || cfg.Search.Oversampling != 4 {
		t.Errorf("search knobs overwritten: %+v", cfg.Search)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VEXDB_TEST_KEY", "secret")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "api_key: ${VEXDB_TEST_KEY}", "api_key: secret"},
		{"unset variable", "api_key: ${VEXDB_TEST_UNSET}", "api_key: "},
		{"default used", "addr: ${VEXDB_TEST_UNSET:-localhost:6379}", "addr: localhost:6379"},
		{"default ignored when set", "key: ${VEXDB_TEST_KEY:-fallback}", "key: secret"},
		{"no variables", "port: 8080", "port: 8080"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := string(expandEnvVars([]byte(tc.input)))
			if got != tc.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if env := GetEnv(); env != "local" {
		t.Errorf("expected local, got %s", env)
	}

	t.Setenv("ENV", "prod")
	if env := GetEnv(); env != "prod" {
		t.Errorf("expected prod, got %s", env)
	}
}
