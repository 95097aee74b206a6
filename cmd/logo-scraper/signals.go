package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// shutdownGrace bounds how long in-flight brands may keep persisting after a signal
const shutdownGrace = 30 * time.Second

// watchSignals cancels the run on the first signal. A second signal, or the grace
// period running out, calls exit(1). The returned func stops watching.
func watchSignals(sigChan <-chan os.Signal, cancel context.CancelFunc, grace time.Duration, exit func(int), log logrus.FieldLogger) func() {
	done := make(chan struct{})
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()

		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Finishing in-flight brands...", sig)
			cancel()
		case <-done:
			return
		}

		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			exit(1)
		case <-timer.C:
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
