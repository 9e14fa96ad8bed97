package metrics

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Recorder traduz eventos do servidor em métricas. Falhas de envio são
// apenas logadas: métrica nunca derruba uma requisição.
type Recorder struct {
	provider Provider
	log      zerolog.Logger
}

// NewRecorder cria um Recorder. provider nil descarta tudo.
func NewRecorder(provider Provider, log zerolog.Logger) *Recorder {
	return &Recorder{provider: provider, log: log}
}

// Reload registra o resultado de um ciclo de recarga de arquivo.
func (r *Recorder) Reload(event, status string) {
	r.emit(ReloadMetric, 1, []string{"event:" + event, "status:" + status})
}

// Routes registra o total de rotas ativas.
func (r *Recorder) Routes(total int) {
	r.emit(RoutesMetric, float64(total), nil)
}

// Dispatch registra uma requisição resolvida pelo despachante.
func (r *Recorder) Dispatch(kind string, status int) {
	r.emit(DispatchMetric, 1, []string{"kind:" + kind, fmt.Sprintf("status:%d", status)})
}

// Latency registra a duração de uma requisição HTTP.
func (r *Recorder) Latency(d time.Duration, method string, status int) {
	r.emit(LatencyMetric, float64(d.Milliseconds()), []string{"method:" + method, fmt.Sprintf("status:%d", status)})
}

func (r *Recorder) emit(def MetricDefinition, val float64, tags []string) {
	if r == nil || r.provider == nil {
		return
	}

	var err error
	switch def.Type {
	case TypeCount:
		err = r.provider.Count(def.Name, val, tags)
	case TypeGauge:
		err = r.provider.Gauge(def.Name, val, tags)
	case TypeHistogram:
		err = r.provider.Histogram(def.Name, val, tags)
	default:
		err = fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("metric", def.Name).Msg("falha ao enviar métrica")
	}
}
