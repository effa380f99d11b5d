package logtest

import (
	"bytes"
	"sync"

	"github.com/ssgreg/logf"

	"equipment-loans/internal/log"
)

// Recorder é um logger síncrono para testes. Guarda todas as entradas codificadas.
type Recorder struct {
	log.FieldLogger

	mu      sync.Mutex
	buf     bytes.Buffer
	encoder logf.Encoder
	entries []logf.Entry
}

// NewRecorder devolve um logger em nível debug que grava as entradas em memória.
func NewRecorder() *Recorder {
	r := &Recorder{
		encoder: logf.NewJSONEncoder(logf.JSONEncoderConfig{
			EncodeTime:   logf.RFC3339NanoTimeEncoder,
			FieldKeyTime: "time",
		}),
	}
	r.FieldLogger = &log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, r)}
	return r
}

//nolint:gocritic
func (r *Recorder) WriteEntry(e logf.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b logf.Buffer
	if err := r.encoder.Encode(&b, e); err == nil {
		r.buf.Write(b.Data)
	}
	r.entries = append(r.entries, e)
}

// Messages devolve o texto de cada entrada gravada.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Text)
	}
	return out
}

// Output devolve as entradas codificadas em JSON.
func (r *Recorder) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}
