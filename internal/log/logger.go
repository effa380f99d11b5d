package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ssgreg/logf"
	"github.com/ssgreg/logftext"
)

// Field guarda o dado de um campo.
type Field = logf.Field

// CloseFunc descarrega e fecha o channel writer por trás do logger.
type CloseFunc logf.ChannelWriterCloseFunc

var (
	Error    = logf.Error
	String   = logf.String
	Int      = logf.Int
	Int64    = logf.Int64
	Bool     = logf.Bool
	Duration = logf.Duration
	Time     = logf.Time
	Any      = logf.Any
)

// Level é a severidade do log.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format escolhe o encoder.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config descreve como o logger do processo é montado.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// FieldLogger é o logger estruturado usado em todo o serviço.
type FieldLogger interface {
	With(...Field) FieldLogger

	Debug(string, ...Field)
	Info(string, ...Field)
	Warn(string, ...Field)
	Error(string, ...Field)

	Infof(string, ...interface{})
}

// LogfAdapter adapta logf.Logger para FieldLogger.
type LogfAdapter struct {
	Logger *logf.Logger
}

// NewDisabledLogger devolve um logger que descarta tudo.
func NewDisabledLogger() FieldLogger {
	return &LogfAdapter{logf.NewDisabledLogger()}
}

// NewLogger monta um logger assíncrono. A CloseFunc devolvida deve ser chamada
// antes do processo sair, senão as entradas em buffer se perdem.
func NewLogger(cfg Config) (FieldLogger, CloseFunc) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          newAppender(cfg.Format, out),
		EnableSyncOnError: true,
	})
	l := logf.NewLogger(toLogfLevel(cfg.Level), channel).With(logf.Int("pid", os.Getpid()))
	return &LogfAdapter{l}, CloseFunc(closeFunc)
}

// ParseLevel converte a string de config em Level; o padrão é info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	}
	return LevelInfo
}

func (l *LogfAdapter) With(fs ...Field) FieldLogger {
	return &LogfAdapter{l.Logger.With(fs...)}
}

func (l *LogfAdapter) Debug(s string, fs ...Field) { l.Logger.Debug(s, fs...) }
func (l *LogfAdapter) Info(s string, fs ...Field)  { l.Logger.Info(s, fs...) }
func (l *LogfAdapter) Warn(s string, fs ...Field)  { l.Logger.Warn(s, fs...) }
func (l *LogfAdapter) Error(s string, fs ...Field) { l.Logger.Error(s, fs...) }

// Infof loga uma mensagem formatada no nível "info".
func (l *LogfAdapter) Infof(format string, args ...interface{}) {
	l.Logger.AtLevel(logf.LevelInfo, func(write logf.LogFunc) {
		write(fmt.Sprintf(format, args...))
	})
}

func toLogfLevel(level Level) logf.Level {
	switch level {
	case LevelError:
		return logf.LevelError
	case LevelWarn:
		return logf.LevelWarn
	case LevelDebug:
		return logf.LevelDebug
	}
	return logf.LevelInfo
}

func newAppender(format Format, w io.Writer) logf.Appender {
	if format == FormatText {
		noColor := true
		return logftext.NewAppender(w, logftext.EncoderConfig{
			NoColor:    &noColor,
			EncodeTime: logf.RFC3339NanoTimeEncoder,
		})
	}
	return logf.NewWriteAppender(w, logf.NewJSONEncoder(logf.JSONEncoderConfig{
		EncodeTime:   logf.RFC3339NanoTimeEncoder,
		FieldKeyTime: "time",
	}))
}
