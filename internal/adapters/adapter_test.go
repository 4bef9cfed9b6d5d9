package adapters

import (
	"errors"
	"testing"

	"propcrawl/internal/config"
)

func testCfg() *config.ScrapingConfig {
	return &config.ScrapingConfig{
		TimeoutSec: 5,
		UserAgents: []string{"test-agent"},
	}
}

func TestNew_AllRegisteredSources(t *testing.T) {
	for _, name := range Sources() {
		adapter, err := New(name, testCfg())
		if err != nil {
			t.Errorf("New(%s) failed: %v", name, err)

			continue
		}

		if adapter.Name() != name {
			t.Errorf("adapter.Name() = %s, want %s", adapter.Name(), name)
		}
	}
}

func TestNew_UnknownSource(t *testing.T) {
	_, err := New("craigslist.org", testCfg())
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
}

func TestSources_CountAndOrder(t *testing.T) {
	names := Sources()

	if len(names) != 7 {
		t.Fatalf("Expected 7 registered sources, got %d: %v", len(names), names)
	}

	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Sources() not sorted: %v", names)
		}
	}
}

func TestRegistered(t *testing.T) {
	if !Registered("zonaprop.com.ar") {
		t.Error("zonaprop.com.ar should be registered")
	}

	if Registered("example.com") {
		t.Error("example.com should not be registered")
	}
}
