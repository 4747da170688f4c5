package config

import (
	"errors"
	"testing"
	"time"

	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Bus    Bus
	Cache  Cache
	Outbox Outbox
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load[testConfig]()
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Bus.Driver)
	assert.Equal(t, "domain-events", cfg.Bus.Topic)
	assert.Equal(t, 10, cfg.Bus.PullMax)
	assert.Len(t, cfg.Bus.KafkaBrokers, 2)
	assert.Equal(t, 10000, cfg.Cache.MaxCapacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Minute, cfg.Cache.TTI)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")

	_, err := Load[testConfig]()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidConfiguration))
}

func TestBusValidate(t *testing.T) {
	assert.Error(t, Bus{Driver: "kafka", Topic: "t"}.Validate())
	assert.Error(t, Bus{Driver: "rabbitmq", Topic: "t"}.Validate())
	assert.Error(t, Bus{Driver: "carrier-pigeon", Topic: "t"}.Validate())
	assert.Error(t, Bus{Driver: "memory"}.Validate())
	assert.NoError(t, Bus{Driver: "memory", Topic: "t"}.Validate())
	assert.NoError(t, Bus{Driver: "rabbitmq", AMQPURL: "amqp://localhost", Topic: "t"}.Validate())
}

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	_, err := Port("TEST_PORT", "8080")
	assert.Error(t, err)

	p, err := Port("UNSET_TEST_PORT", "8080")
	require.NoError(t, err)
	assert.Equal(t, "8080", p)
}
