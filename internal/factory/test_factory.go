package factory

import (
	"time"

	"github.com/mcoot/pairlobby/internal/dependencies/mocks"
	"github.com/mcoot/pairlobby/internal/metrics"
	"github.com/mcoot/pairlobby/internal/storage/memory"
	"github.com/mcoot/pairlobby/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(Config{})
}

// NewTestAppWithConfig is NewTestApp with explicit factory settings.
// Storage is always in-memory.
func NewTestAppWithConfig(cfg Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	logger := cfg.Logger
	if logger == nil {
		logger = testutil.NopLogger()
	}

	app := newWithDependencies(store, mockClock, mockRandom, metrics.New(), cfg, logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
