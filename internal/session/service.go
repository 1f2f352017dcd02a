package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// Completion is handed to the CompletionHook when a session is scored.
type Completion struct {
	Session  *Session
	Result   scoring.Result
	Public   bool
	ClientIP string
}

// CompletionHook persists or publishes a finished survey and returns the
// stored result id.
type CompletionHook func(ctx context.Context, c Completion) (string, error)

const lockStripes = 64

// Service runs the survey flow on top of a Store.
type Service struct {
	store  Store
	engine *scoring.Engine
	tokens *TokenIssuer
	hook   CompletionHook
	locks  [lockStripes]sync.Mutex
}

// NewService wires the session flow. hook may be nil.
func NewService(store Store, engine *scoring.Engine, tokens *TokenIssuer, hook CompletionHook) *Service {
	if engine == nil {
		engine = scoring.NewEngine(nil)
	}
	return &Service{
		store:  store,
		engine: engine,
		tokens: tokens,
		hook:   hook,
	}
}

// Backend names the store in use.
func (s *Service) Backend() string {
	return s.store.Backend()
}

// Start creates a session and a token that grants access to it.
func (s *Service) Start(ctx context.Context) (*Session, string, error) {
	sess := New(s.engine.Catalog())
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(sess.ID)
	if err != nil {
		return nil, "", err
	}

	slog.Debug("Session started", "session_id", sess.ID)
	return sess, token, nil
}

// Authorize checks that token was issued for session id.
func (s *Service) Authorize(token, id string) error {
	if token == "" {
		return apperrors.NewUnauthorizedError("Missing session token", nil)
	}
	sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return apperrors.NewUnauthorizedError("Invalid session token", err)
	}
	if sessionID != id {
		return apperrors.NewUnauthorizedError("Token does not match session", nil)
	}
	return nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Bind(s.engine.Catalog())
	return sess, nil
}

// Answer records the answer to one question.
func (s *Service) Answer(ctx context.Context, id, questionID string, answer scoring.Answer) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.SetAnswer(questionID, answer)
	})
}

// SelectCountry sets the respondent's country.
func (s *Service) SelectCountry(ctx context.Context, id string, code survey.CountryCode) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.SetCountry(code)
	})
}

// Seek moves the question cursor.
func (s *Service) Seek(ctx context.Context, id string, question int) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.SetCurrentQuestion(question)
	})
}

// Reset clears the session's answers and result.
func (s *Service) Reset(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		sess.Reset()
		return nil
	})
}

// Complete scores the session. A session that already holds a result is
// returned as is, so the completion hook runs once per set of answers.
func (s *Service) Complete(ctx context.Context, id string, public bool, clientIP string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		if sess.Result != nil {
			return nil
		}

		result := sess.Complete(s.engine)
		if s.hook == nil {
			return nil
		}

		resultID, err := s.hook(ctx, Completion{
			Session:  sess,
			Result:   result,
			Public:   public,
			ClientIP: clientIP,
		})
		if err != nil {
			return fmt.Errorf("failed to record completed survey: %w", err)
		}
		sess.ResultID = resultID
		return nil
	})
}

func (s *Service) update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}
