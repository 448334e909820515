// Package daemon runs the background scheduler that keeps credentials
// fresh and the local cache in sync, plus the process control around it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tmzdev/tmz/internal/auth"
	"github.com/tmzdev/tmz/internal/lock"
	"github.com/tmzdev/tmz/internal/store"
	"github.com/tmzdev/tmz/internal/teams"
)

// Remote is the slice of the API client the scheduler needs.
type Remote interface {
	ListConversations(ctx context.Context) ([]map[string]any, error)
	GetMessages(ctx context.Context, conversationID string, pageSize int) ([]map[string]any, error)
}

// Credentials is the slice of the credential manager the scheduler needs.
type Credentials interface {
	GetValidOrRefresh(ctx context.Context) (*auth.Bundle, error)
}

// Config tunes the scheduler's cadence and sync depth.
type Config struct {
	RefreshInterval         time.Duration
	SyncInterval            time.Duration
	TopConversations        int
	MessagesPerConversation int
	PIDPath                 string
}

// Scheduler periodically refreshes credentials and syncs conversations
// and messages into the cache. Tasks run one at a time on a single loop.
type Scheduler struct {
	cfg    Config
	creds  Credentials
	remote Remote
	db     *store.DB
	logger *zap.Logger
}

// NewScheduler creates a scheduler, applying defaults to unset config.
func NewScheduler(cfg Config, creds Credentials, remote Remote, db *store.DB, logger *zap.Logger) *Scheduler {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 50 * time.Minute
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 5 * time.Minute
	}
	if cfg.TopConversations <= 0 {
		cfg.TopConversations = 30
	}
	if cfg.MessagesPerConversation <= 0 {
		cfg.MessagesPerConversation = 50
	}
	return &Scheduler{cfg: cfg, creds: creds, remote: remote, db: db, logger: logger}
}

// Run acquires the PID marker, performs an immediate refresh and sync, and
// then services the periodic timers until ctx is cancelled. A second
// instance fails fast with the holder's pid.
func (s *Scheduler) Run(ctx context.Context) error {
	marker, err := lock.Acquire(s.cfg.PIDPath)
	if err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			return fmt.Errorf("daemon already running (pid %d)", held.PID)
		}
		return err
	}
	defer func() { _ = marker.Release() }()

	s.logger.Info("daemon started",
		zap.Duration("refresh_interval", s.cfg.RefreshInterval),
		zap.Duration("sync_interval", s.cfg.SyncInterval))

	s.refreshPass(ctx)
	s.syncPass(ctx)

	refreshTicker := time.NewTicker(s.cfg.RefreshInterval)
	defer refreshTicker.Stop()
	syncTicker := time.NewTicker(s.cfg.SyncInterval)
	defer syncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("daemon stopping")
			return nil
		case <-refreshTicker.C:
			s.refreshPass(ctx)
		case <-syncTicker.C:
			s.syncPass(ctx)
		}
	}
}

// refreshPass keeps credentials fresh. Failures are logged, never fatal:
// the next tick tries again.
func (s *Scheduler) refreshPass(ctx context.Context) {
	bundle, err := s.creds.GetValidOrRefresh(ctx)
	if err != nil {
		s.logger.Error("credential refresh failed", zap.Error(err))
		return
	}
	remaining := time.Until(time.Unix(bundle.ExpiresAt, 0))
	s.logger.Info("credentials ok", zap.Duration("expires_in", remaining.Round(time.Second)))
	s.recordState("last_refresh_at", time.Now().UTC().Format(time.RFC3339))
}

// syncPass pulls the conversation list, then recent messages for the most
// recently active conversations. Per-item failures are logged and skipped;
// the pass always processes as much as it can.
func (s *Scheduler) syncPass(ctx context.Context) {
	start := time.Now()

	payloads, err := s.remote.ListConversations(ctx)
	if err != nil {
		s.logger.Error("listing conversations failed", zap.Error(err))
		return
	}

	convCount := 0
	for _, payload := range payloads {
		conv := teams.ParseConversation(payload)
		if conv.ID == "" {
			continue
		}
		if err := s.db.UpsertConversation(conv); err != nil {
			s.logger.Warn("upserting conversation failed",
				zap.String("conversation", conv.ID), zap.Error(err))
			continue
		}
		convCount++
	}

	top, err := s.db.ListConversations(s.cfg.TopConversations)
	if err != nil {
		s.logger.Error("listing cached conversations failed", zap.Error(err))
		return
	}

	msgCount := 0
	for _, conv := range top {
		if ctx.Err() != nil {
			return
		}
		msgs, err := s.remote.GetMessages(ctx, conv.ID, s.cfg.MessagesPerConversation)
		if err != nil {
			s.logger.Warn("fetching messages failed",
				zap.String("conversation", conv.ID), zap.Error(err))
			continue
		}
		for _, payload := range msgs {
			msg := teams.ParseMessage(payload, conv.ID)
			if msg == nil || msg.MsgID == "" {
				continue
			}
			if err := s.db.UpsertMessage(msg); err != nil {
				s.logger.Warn("upserting message failed",
					zap.String("conversation", conv.ID),
					zap.String("message", msg.MsgID), zap.Error(err))
				continue
			}
			msgCount++
		}
	}

	s.logger.Info("sync pass complete",
		zap.Int("conversations", convCount),
		zap.Int("messages", msgCount),
		zap.Duration("took", time.Since(start).Round(time.Millisecond)))

	s.recordState("last_sync_at", time.Now().UTC().Format(time.RFC3339))
	s.recordState("last_sync_conversations", strconv.Itoa(convCount))
	s.recordState("last_sync_messages", strconv.Itoa(msgCount))
}

func (s *Scheduler) recordState(key, value string) {
	if err := s.db.SetSyncState(key, value); err != nil {
		s.logger.Warn("recording sync state failed", zap.String("key", key), zap.Error(err))
	}
}

// SyncOnce runs a single sync pass, for the foreground `tmz sync` command.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	if _, err := s.creds.GetValidOrRefresh(ctx); err != nil {
		return err
	}
	s.syncPass(ctx)
	return nil
}
