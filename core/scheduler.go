package core

import (
	"context"
	"sync"
	"time"

	"langaccessor/database"
	"langaccessor/logger"
	"langaccessor/models"

	"github.com/google/uuid"
)

// PassFunc runs one synchronization pass.
type PassFunc func(ctx context.Context) error

// PassReport describes a finished pass.
type PassReport struct {
	ID       string
	Reason   string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Scheduler serializes synchronization passes. Triggers land in a queue of capacity
// one: while a pass is queued further triggers are absorbed into it, and a trigger that
// arrives during a running pass schedules exactly one follow-up.
type Scheduler struct {
	pass  PassFunc
	queue chan string

	hookMu sync.RWMutex
	hook   func(PassReport)
}

func NewScheduler(pass PassFunc) *Scheduler {
	return &Scheduler{pass: pass, queue: make(chan string, 1)}
}

// OnPass sets a function called after every pass. It runs on the worker goroutine.
func (s *Scheduler) OnPass(hook func(PassReport)) {
	s.hookMu.Lock()
	s.hook = hook
	s.hookMu.Unlock()
}

// Trigger requests a pass without blocking. It reports false when the request was
// coalesced into an already queued pass.
func (s *Scheduler) Trigger(reason string) bool {
	select {
	case s.queue <- reason:
		logger.Debug("Scheduler: pass queued (%s)", reason)
		return true
	default:
		logger.Debug("Scheduler: pass already queued, coalescing trigger (%s)", reason)
		return false
	}
}

// Run executes queued passes one at a time until ctx is cancelled. A failed pass is
// logged and the worker keeps serving later triggers.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Scheduler: sync worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler: sync worker stopped")
			return ctx.Err()
		case reason := <-s.queue:
			s.runPass(ctx, reason)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, reason string) {
	report := PassReport{ID: uuid.NewString(), Reason: reason, Started: time.Now()}
	logger.Debug("Scheduler: pass %s started (%s)", report.ID, reason)

	report.Err = s.pass(ctx)
	report.Duration = time.Since(report.Started)
	if report.Err != nil {
		logger.Error("Scheduler: pass %s failed after %s: %v", report.ID, report.Duration, report.Err)
	} else {
		logger.Debug("Scheduler: pass %s finished in %s", report.ID, report.Duration)
	}

	s.hookMu.RLock()
	hook := s.hook
	s.hookMu.RUnlock()
	if hook != nil {
		hook(report)
	}
}

// ChangeSubscriber is satisfied by database.Settings.
type ChangeSubscriber interface {
	OnChanged(fn database.ChangeListener) func()
}

// TriggerOnSettingsChange triggers s whenever domain_settings or extension_enabled
// changes. Writes of rule_id_map made by passes themselves never trigger.
func TriggerOnSettingsChange(sub ChangeSubscriber, s *Scheduler) (unsubscribe func()) {
	return sub.OnChanged(func(keys []string) {
		for _, k := range keys {
			if k == models.DomainSettingsKey || k == models.ExtensionEnabledKey {
				s.Trigger("settings changed: " + k)
				return
			}
		}
	})
}

// SyncPass adapts a Synchronizer to a PassFunc.
func SyncPass(syncer *Synchronizer) PassFunc {
	return func(ctx context.Context) error {
		_, err := syncer.Synchronize(ctx)
		return err
	}
}
