// Package store persists per-session run history in a bolt database inside
// the data directory. Sessions are keyed by ULID, so listing in key order is
// listing in time order.
package store

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	dbFileName     = "stackpilot.db"
	sessionsBucket = "sessions"
)

// Outcome classifies how a session ended.
type Outcome string

const (
	OutcomeReady   Outcome = "ready"   // reached READY and shut down cleanly
	OutcomeFailed  Outcome = "failed"  // startup failed
	OutcomeAborted Outcome = "aborted" // quit before reaching READY
)

// Session is one supervisor run.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Store wraps the bolt database.
type Store struct {
	db     *bbolt.DB
	logger *zap.SugaredLogger
}

// Open opens (creating if necessary) the session store in dataDir.
func Open(dataDir string, logger *zap.SugaredLogger) (*Store, error) {
	dbPath := filepath.Join(dataDir, dbFileName)

	db, err := bbolt.Open(dbPath, 0o644, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store %s: %w", dbPath, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session bucket: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewSessionID returns a fresh, time-ordered session identifier.
func NewSessionID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// RecordStart persists a new session with the given ID.
func (s *Store) RecordStart(id string) error {
	session := Session{
		ID:        id,
		StartedAt: time.Now(),
	}
	return s.put(&session)
}

// RecordEnd marks the session ended with the given outcome. A missing
// session record is an error: ends without starts indicate a logic bug.
func (s *Store) RecordEnd(id string, outcome Outcome, sessionErr error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))

		raw := bucket.Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("session %s not found", id)
		}

		var session Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("failed to decode session %s: %w", id, err)
		}

		session.EndedAt = time.Now()
		session.Outcome = outcome
		if sessionErr != nil {
			session.Error = sessionErr.Error()
		}

		data, err := json.Marshal(&session)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), data)
	})
}

// List returns up to limit sessions, most recent first.
func (s *Store) List(limit int) ([]Session, error) {
	var sessions []Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(sessionsBucket)).Cursor()

		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if limit > 0 && len(sessions) >= limit {
				break
			}
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				s.logger.Warnw("Skipping undecodable session record", "key", string(k), "error", err)
				continue
			}
			sessions = append(sessions, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (s *Store) put(session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(session.ID), data)
	})
}
