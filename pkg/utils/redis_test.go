package utils

import "testing"

func TestReleaseLockScriptCompiles(t *testing.T) {
	// Compile-time smoke test: the script should be initialized.
	if releaseLockScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize <= 0 || c.DialTimeout <= 0 || c.PingTimeout <= 0 {
		t.Fatalf("expected defaults to be applied, got %+v", c)
	}
}
