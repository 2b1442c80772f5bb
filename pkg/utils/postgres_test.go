package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfigDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()

	if got.MaxOpenConns != 25 || got.MaxIdleConns != 25 {
		t.Fatalf("pool size defaults, got %+v", got)
	}
	if got.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("conn lifetime default, got %v", got.ConnMaxLifetime)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("ping timeout default, got %v", got.PingTimeout)
	}
}

func TestPostgresPoolConfigKeepsExplicitValues(t *testing.T) {
	in := PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}
	got := in.withDefaults()
	if got.MaxOpenConns != 3 || got.PingTimeout != time.Second {
		t.Fatalf("explicit values must survive defaulting: %+v", got)
	}
}
