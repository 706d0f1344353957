package kafka

import (
	"context"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// messageWriter: часть kafka.Writer, нужная продюсеру.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer публикует события поиска в Kafka.
type Producer struct {
	writer messageWriter
	logger logger.Logger
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              10,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, logger)
}

func newProducer(writer messageWriter, logger logger.Logger) *Producer {
	return &Producer{writer: writer, logger: logger}
}

// Publish сериализует событие в protobuf Struct, ключом сообщения служит тип события.
func (p *Producer) Publish(ctx context.Context, event *domain.SearchEvent) error {
	value, err := EncodeEvent(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Kind), "encode_error").Inc()
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Kind),
		Value: value,
		Time:  event.OccurredAt,
	}); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Kind), "error").Inc()
		metrics.RecordExternalError("kafka")
		return e.Wrap(whereami.WhereAmI(), err)
	}

	metrics.EventsPublished.WithLabelValues(string(event.Kind), "ok").Inc()
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// EncodeEvent возвращает protobuf-представление события.
func EncodeEvent(event *domain.SearchEvent) ([]byte, error) {
	payload, err := structpb.NewStruct(map[string]any{
		"event_id":       event.ID,
		"kind":           string(event.Kind),
		"query_ids":      toAnySlice(event.QueryIDs),
		"result_ids":     toAnySlice(event.ResultIDs),
		"occurred_at_ms": float64(event.OccurredAt.UnixMilli()),
	})
	if err != nil {
		return nil, err
	}

	return proto.Marshal(payload)
}

// DecodeEvent разбирает событие, записанное EncodeEvent.
func DecodeEvent(data []byte) (*domain.SearchEvent, error) {
	var payload structpb.Struct
	if err := proto.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	f := payload.GetFields()
	return domain.NewSearchEvent(
		f["event_id"].GetStringValue(),
		domain.SearchEventKind(f["kind"].GetStringValue()),
		toStrings(f["query_ids"].GetListValue()),
		toStrings(f["result_ids"].GetListValue()),
		time.UnixMilli(int64(f["occurred_at_ms"].GetNumberValue())).UTC(),
	), nil
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}

	return out
}

func toStrings(list *structpb.ListValue) []string {
	values := list.GetValues()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.GetStringValue()
	}

	return out
}
