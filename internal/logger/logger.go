package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log = zap.NewNop()
)

// Init собирает глобальный логгер. В dev-режиме: консольный вывод и DPanic паникует.
func Init(isDev bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if isDev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	mu.Lock()
	log = l
	mu.Unlock()
	return nil
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Sync() {
	_ = L().Sync()
}
