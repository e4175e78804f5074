package gologger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	LevelTrace    = slog.Level(-8)
	LevelCritical = slog.Level(12)
)

// Resolve uses deterministic precedence provider > logger > nop. The returned
// logger is never nil.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	provider, logger = glog.Resolve(name, provider, logger)
	return provider, glog.Ensure(logger)
}

// ParseLevel maps configured level names onto slog levels. Unknown names
// resolve to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "CRITICAL", "FATAL":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

type Options struct {
	Service     string
	Environment string
	Level       string
	Writer      io.Writer
	// Exit runs after a Fatal line is written. Defaults to os.Exit.
	Exit func(int)
}

// Provider writes JSON lines through log/slog. Every logger it hands out
// carries service, environment and logger fields.
type Provider struct {
	base *slog.Logger
	exit func(int)
}

func NewProvider(opts Options) *Provider {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: replaceLevelName,
	})
	base := slog.New(handler)
	if service := strings.TrimSpace(opts.Service); service != "" {
		base = base.With("service", service)
	}
	if environment := strings.TrimSpace(opts.Environment); environment != "" {
		base = base.With("environment", environment)
	}
	return &Provider{base: base, exit: exit}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil {
		return glog.Nop()
	}
	base := p.base
	if name = strings.TrimSpace(name); name != "" {
		base = base.With("logger", name)
	}
	return &Logger{base: base, ctx: context.Background(), exit: p.exit}
}

type Logger struct {
	base *slog.Logger
	ctx  context.Context
	exit func(int)
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)

func (l *Logger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(LevelCritical, msg, args)
	if l != nil && l.exit != nil {
		l.exit(1)
	}
}

// WithContext binds ctx to later log calls and adds the invocation request
// id when ctx carries a Lambda context.
func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if l == nil || ctx == nil {
		return l
	}
	base := l.base
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		base = base.With("request_id", lc.AwsRequestID)
	}
	return &Logger{base: base, ctx: ctx, exit: l.exit}
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if l == nil || len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return &Logger{base: l.base.With(args...), ctx: l.ctx, exit: l.exit}
}

func (l *Logger) log(level slog.Level, msg string, args []any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Log(l.ctx, level, msg, args...)
}

func replaceLevelName(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != slog.LevelKey {
		return attr
	}
	level, ok := attr.Value.Any().(slog.Level)
	if !ok {
		return attr
	}
	switch {
	case level <= LevelTrace:
		attr.Value = slog.StringValue("TRACE")
	case level >= LevelCritical:
		attr.Value = slog.StringValue("CRITICAL")
	case level == slog.LevelWarn:
		attr.Value = slog.StringValue("WARNING")
	}
	return attr
}
