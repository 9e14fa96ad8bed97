package transport

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
)

// SQSClient define a interface necessária para o reloader (permite Mocking)
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Reloader agenda uma recarga completa dos arquivos de definição.
type Reloader interface {
	Reload()
}

// SQSReloader escuta uma fila e dispara a recarga completa a cada mensagem.
// Útil quando os arquivos vivem num volume compartilhado sem notificações.
type SQSReloader struct {
	client     SQSClient
	queueUrl   string
	reloader   Reloader
	logger     zerolog.Logger
	retryDelay time.Duration
}

// NewSQSReloader cria uma nova instância do reloader
func NewSQSReloader(client SQSClient, queueUrl string, reloader Reloader, logger zerolog.Logger) *SQSReloader {
	return &SQSReloader{
		client:     client,
		queueUrl:   queueUrl,
		reloader:   reloader,
		logger:     logger.With().Str("component", "sqs_reloader").Logger(),
		retryDelay: 5 * time.Second,
	}
}

// Run monitora a fila até o contexto terminar (bloqueante).
func (s *SQSReloader) Run(ctx context.Context) error {
	if s.queueUrl == "" {
		s.logger.Warn().Msg("URL da fila SQS não configurada. Recarga por fila desativada.")
		return nil
	}

	s.logger.Info().Str("queue", s.queueUrl).Msg("📡 Monitorando fila SQS para recarga")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Parando monitoramento SQS")
			return nil
		default:
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueUrl),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20, // Long polling
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Dur("retry_in", s.retryDelay).Msg("Erro no SQS. Retentando...")
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		if len(out.Messages) == 0 {
			continue
		}

		// várias mensagens no mesmo lote valem uma única recarga
		s.logger.Info().Int("messages", len(out.Messages)).Msg("🔔 Pedido de recarga recebido via SQS")
		s.reloader.Reload()

		for _, msg := range out.Messages {
			if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueUrl),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				s.logger.Warn().Err(err).Msg("falha ao remover mensagem da fila")
			}
		}
	}
}
