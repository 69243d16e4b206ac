package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileDumper writes each compiled payload to <dir>/<player>/<frame>.txt.
type FileDumper struct {
	dir string
}

// NewFileDumper creates a dumper rooted at dir.
func NewFileDumper(dir string) (*FileDumper, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	return &FileDumper{dir: dir}, nil
}

// Dump implements hint.Dumper.
func (d *FileDumper) Dump(playerID string, frame uint64, text string) error {
	dir := filepath.Join(d.dir, safeName(playerID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create player dump directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%08d.txt", frame))
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}
	return nil
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

// SQLiteDumper stores compiled payloads through a DumpRepository.
type SQLiteDumper struct {
	repo      DumpRepository
	sessionID string
	timeout   time.Duration
}

// NewSQLiteDumper creates a dumper tagging rows with sessionID.
func NewSQLiteDumper(repo DumpRepository, sessionID string) *SQLiteDumper {
	return &SQLiteDumper{repo: repo, sessionID: sessionID, timeout: 2 * time.Second}
}

// Dump implements hint.Dumper.
func (d *SQLiteDumper) Dump(playerID string, frame uint64, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.repo.Save(ctx, PayloadDump{
		ID:        uuid.NewString(),
		SessionID: d.sessionID,
		PlayerID:  playerID,
		Frame:     int64(frame),
		Text:      text,
		Length:    len(text),
		CreatedAt: time.Now(),
	})
}
