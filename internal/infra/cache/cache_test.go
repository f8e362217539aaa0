package cache_test

import (
	"testing"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[*domain.RegistryRecord](5 * time.Minute)

	c.Set("11222333000181", &domain.RegistryRecord{CNPJ: "11222333000181", LegalName: "ACME LTDA"})
	val, ok := c.Get("11222333000181")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val.LegalName != "ACME LTDA" {
		t.Errorf("expected 'ACME LTDA', got '%s'", val.LegalName)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
	if c.Len() != 0 {
		t.Errorf("expected no live entries, got %d", c.Len())
	}
}

func TestCache_NoTTLKeepsEntries(t *testing.T) {
	c := cache.New[string](0)

	c.Set("key1", "value1")
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get("key1"); !ok {
		t.Fatal("expected entry without TTL to survive")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}
