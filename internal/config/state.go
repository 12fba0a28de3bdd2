package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

// State is the CLI session carried between generate and refine invocations.
type State struct {
	Provider   string             `toml:"provider"`
	Model      string             `toml:"model"`
	UpdatedAt  time.Time          `toml:"updated_at"`
	Brief      conversation.Brief `toml:"brief"`
	Artifact   string             `toml:"artifact"`
	Transcript []llm.Turn         `toml:"transcript"`
}

// NewState creates an empty session.
func NewState() *State {
	return &State{}
}

// Empty reports whether there is no prompt to refine.
func (s *State) Empty() bool {
	return s.Artifact == ""
}

// Session converts the saved state for conversation.Manager.Restore.
func (s *State) Session() conversation.State {
	return conversation.State{
		Artifact:   s.Artifact,
		Transcript: append([]llm.Turn(nil), s.Transcript...),
		Brief:      s.Brief,
	}
}

// Capture copies a manager snapshot into the state.
func (s *State) Capture(snapshot conversation.State, now time.Time) {
	s.Artifact = snapshot.Artifact
	s.Transcript = append([]llm.Turn(nil), snapshot.Transcript...)
	s.Brief = snapshot.Brief
	s.UpdatedAt = now.UTC()
}

// ModelDisplay returns provider/model for status lines.
func (s *State) ModelDisplay() string {
	if s.Provider == "" {
		return "no model selected"
	}
	if s.Model == "" {
		return s.Provider
	}
	return fmt.Sprintf("%s/%s", s.Provider, s.Model)
}

// SaveState writes the state to a TOML file
func SaveState(filePath string, state *State) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create/open state file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := toml.NewEncoder(writer)
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("failed to encode state to TOML file %s: %w", filePath, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer for state file %s: %w", filePath, err)
	}

	log.Debug("State saved to file", "file", filePath)
	return nil
}

// LoadState loads the state from a TOML file. A missing file gives an empty
// state.
func LoadState(filePath string) (*State, error) {
	var state State
	if _, err := toml.DecodeFile(filePath, &state); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to decode TOML from file %s: %w", filePath, err)
	}
	return &state, nil
}

// ClearState removes the state file.
func ClearState(filePath string) error {
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file %s: %w", filePath, err)
	}
	return nil
}
