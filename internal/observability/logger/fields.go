package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }
func RetryAfter(v time.Duration) zap.Field { return zap.Duration("retry_after", v) }

// Admission

// Route is the admission route class (login, register, ...).
func Route(v string) zap.Field { return zap.String("route", v) }

// Guard is the name of the guard that produced an entry.
func Guard(v string) zap.Field { return zap.String("guard", v) }

func AccountID(v string) zap.Field { return zap.String("account_id", v) }

// Email logs a masked address.
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

func Kind(v string) zap.Field { return zap.String("kind", v) }

// System

func Component(v string) zap.Field { return zap.String("component", v) }

// Op is the operation being performed, e.g. "twofactor.confirm".
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer is controller, service, guard or repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

// Generic

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
