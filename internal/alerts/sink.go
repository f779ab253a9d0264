// Package alerts carries monitor output to its consumers. Delivery channels
// (Discord, Telegram, email) live outside this engine; a Sink is the seam
// they plug into.
package alerts

import (
	"io"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"CryptoSignalEngine/internal/models"
)

type Sink interface {
	Send(alert models.Alert) error
}

// LogSink writes alerts to the structured log.
type LogSink struct{}

func (LogSink) Send(alert models.Alert) error {
	var event *zerolog.Event
	switch alert.Type {
	case models.AlertTypeError:
		event = log.Error()
	case models.AlertTypeWarning:
		event = log.Warn()
	default:
		event = log.Info()
	}

	event = event.Str("code", alert.Code)
	for k, v := range alert.Fields {
		event = event.Str(k, v)
	}
	event.Msg(alert.Message)
	return nil
}

// JSONSink streams alerts as JSON lines to a writer, one object per alert.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Send(alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(alert)
}

// Fanout sends each alert to every sink, returning the first error.
type Fanout []Sink

func (f Fanout) Send(alert models.Alert) error {
	var firstErr error
	for _, sink := range f {
		if err := sink.Send(alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
