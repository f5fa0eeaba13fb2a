// Package logger - общий logrus логгер демона. До Init (в тестах) пишет
// через стандартный логгер logrus.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init настраивает логгер под окружение: в development текст и debug,
// иначе JSON и info. Непустой level переопределяет уровень.
func Init(env, level string) {
	l := logrus.New()

	if env == "development" {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			l.SetLevel(lvl)
		} else {
			l.WithField("level", level).Warn("logger: неизвестный уровень, оставляем по умолчанию")
		}
	}

	Log = l
}

// SetOutput перенаправляет вывод (тесты, файл).
func SetOutput(w io.Writer) {
	L().SetOutput(w)
}

// L возвращает настроенный логгер или стандартный logrus, если Init не вызывался.
func L() *logrus.Logger {
	if Log == nil {
		return logrus.StandardLogger()
	}
	return Log
}

// Trade - entry с полем trade_id.
func Trade(tradeID int64) *logrus.Entry {
	return L().WithField("trade_id", tradeID)
}
