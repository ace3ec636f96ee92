package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fwojciec/relay"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/fwojciec/relay/memory"
)

// openStore loads the session at path into a memory store. A missing file
// starts a new session that will be saved there.
func openStore(path string, onChange func()) (*memory.Store, error) {
	var opts []memory.Option
	if onChange != nil {
		opts = append(opts, memory.WithOnChange(onChange))
	}
	if path != "" {
		s, err := relayjson.Load(path)
		switch {
		case err == nil:
			opts = append(opts, memory.WithSession(s))
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("load session: %w", err)
		}
	}
	return memory.New(opts...), nil
}

// saveStore writes the store's session to path, or to dir/<id>.json when
// path is empty. Empty sessions are not saved. It returns the path written.
func saveStore(store *memory.Store, path, dir string) (string, error) {
	s := store.Session()
	if !hasMessages(s) {
		return "", nil
	}
	if path == "" {
		path = filepath.Join(dir, s.ID+".json")
	}
	if err := relayjson.Save(path, s); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return path, nil
}

func hasMessages(s relay.Session) bool {
	for _, m := range s.Messages {
		if !m.Streaming {
			return true
		}
	}
	return false
}
