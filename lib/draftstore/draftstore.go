// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package draftstore persists composer drafts per conversation so a
// half-written message survives the client restarting.
package draftstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Store writes one CBOR-encoded file per conversation under a
// directory. Conversation IDs are hex-encoded into filenames so any
// backend-issued identifier is safe on disk.
type Store struct {
	dir string
}

type draftRecord struct {
	ConversationID string    `cbor:"1,keyasint"`
	Content        string    `cbor:"2,keyasint"`
	SavedAt        time.Time `cbor:"3,keyasint"`
}

// Open creates the store directory if needed and returns a Store.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("draftstore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("draftstore: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the draft for a conversation. An empty draft removes
// the stored file; there is nothing worth keeping.
func (s *Store) Save(conversationID, content string) error {
	path := s.path(conversationID)
	if content == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("draftstore: removing draft: %w", err)
		}
		return nil
	}

	data, err := cbor.Marshal(draftRecord{
		ConversationID: conversationID,
		Content:        content,
		SavedAt:        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("draftstore: encoding draft: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("draftstore: writing draft: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("draftstore: replacing draft: %w", err)
	}
	return nil
}

// Load returns the stored draft for a conversation, or empty when
// none exists. A corrupt file reads as empty: losing a draft beats
// refusing to open the composer.
func (s *Store) Load(conversationID string) string {
	data, err := os.ReadFile(s.path(conversationID))
	if err != nil {
		return ""
	}
	var record draftRecord
	if err := cbor.Unmarshal(data, &record); err != nil {
		return ""
	}
	if record.ConversationID != conversationID {
		return ""
	}
	return record.Content
}

func (s *Store) path(conversationID string) string {
	return filepath.Join(s.dir, hex.EncodeToString([]byte(conversationID))+".draft")
}
