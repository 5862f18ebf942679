// env.go wires config, storage, the backend client and the session/chat
// stores together for one command invocation.
package cli

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/chat"
	"github.com/devmate-dev/devmate/internal/config"
	"github.com/devmate-dev/devmate/internal/log"
	"github.com/devmate-dev/devmate/internal/session"
	"github.com/devmate-dev/devmate/internal/storage"
)

// keyActive remembers the conversation the CLI is continuing between runs.
const keyActive = "active_conversation"

type appEnv struct {
	home    string
	cfg     *config.Config
	store   *storage.Store
	events  log.Recorder
	logger  *zap.Logger
	client  *backend.Client
	session *session.Store
	chat    *chat.Sync
}

func resolveHome() (string, error) {
	if homeFlag != "" {
		return homeFlag, nil
	}
	return config.HomeDir()
}

func openEnv() (*appEnv, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(home, 0700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", home, err)
	}

	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	if apiFlag != "" {
		cfg.API.Root = apiFlag
	}
	if debugFlag {
		cfg.Log.Debug = true
	}

	logger, err := log.NewDiagnostic(home, cfg.Log.Debug)
	if err != nil {
		return nil, err
	}

	var events log.Recorder = log.Discard
	if cfg.Log.Events {
		l, err := log.NewLogger(home)
		if err != nil {
			return nil, err
		}
		events = l
	}

	store, err := storage.NewStore(cfg.StoragePath(home))
	if err != nil {
		return nil, err
	}

	client := backend.New(cfg.API.Root, backend.Options{
		Timeout: time.Duration(cfg.API.RequestTimeout) * time.Second,
		Logger:  logger,
	})
	sess := session.NewStore(client, store, events, logger)
	sess.Restore()

	return &appEnv{
		home:    home,
		cfg:     cfg,
		store:   store,
		events:  events,
		logger:  logger,
		client:  client,
		session: sess,
		chat:    chat.New(client, sess, chat.Options{Cache: store, Events: events, Logger: logger}),
	}, nil
}

func (e *appEnv) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing storage", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// requireSession fails with a hint when nobody is logged in.
func (e *appEnv) requireSession() (session.Session, error) {
	sess, ok := e.session.Current()
	if !ok {
		return session.Session{}, fmt.Errorf("%w; run: devmate login", session.ErrNotAuthenticated)
	}
	return sess, nil
}

// activeConversation returns the conversation a bare "send" continues.
func (e *appEnv) activeConversation() string {
	id, _, err := e.store.Get(keyActive)
	if err != nil {
		e.logger.Warn("reading active conversation", zap.Error(err))
	}
	return id
}

func (e *appEnv) setActiveConversation(id string) error {
	if id == "" {
		return e.store.Delete(keyActive)
	}
	return e.store.Set(map[string]string{keyActive: id})
}
