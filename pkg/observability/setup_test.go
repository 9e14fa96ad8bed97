package observability

import (
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/hotmock/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMetrics(t *testing.T) {
	t.Run("Disabled returns Noop", func(t *testing.T) {
		provider, err := SetupMetrics(config.MetricsConf{Datadog: config.DatadogConf{Enabled: false}})
		require.NoError(t, err)
		assert.IsType(t, &NoopProvider{}, provider)
		assert.NoError(t, provider.Close())
	})

	t.Run("Enabled returns Datadog", func(t *testing.T) {
		provider, err := SetupMetrics(config.MetricsConf{
			Datadog: config.DatadogConf{Enabled: true, Addr: "localhost:8125"},
		})
		// statsd sobre UDP não exige o agente ativo para criar o client
		require.NoError(t, err)
		assert.IsType(t, &DatadogProvider{}, provider)
		assert.NoError(t, provider.Close())
	})
}

func TestDatadogProvider_Delegates(t *testing.T) {
	provider := &DatadogProvider{client: &statsd.NoOpClient{}}

	assert.NoError(t, provider.Count("hotmock.reload", 1, []string{"event:add"}))
	assert.NoError(t, provider.Gauge("hotmock.routes", 3, nil))
	assert.NoError(t, provider.Histogram("hotmock.request.latency", 12, nil))
}
