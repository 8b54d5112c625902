package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/stemsi/examvault/internal/model"
)

// SubmissionLog is the append-only local store of sealed snapshots,
// queryable by session and clearable after a confirmed upload.
type SubmissionLog interface {
	Append(sessionID uuid.UUID, sub *model.SealedSubmission) error
	List(sessionID uuid.UUID) ([]model.SealedSubmission, error)
	Clear(sessionID uuid.UUID) error
}

// FileSubmissionLog keeps one JSON-lines file per session. Records are only
// ever appended; the file is deleted as a whole after upload confirmation.
type FileSubmissionLog struct {
	dir string
}

// NewFileSubmissionLog creates the backing directory if needed.
func NewFileSubmissionLog(dataDir string) (*FileSubmissionLog, error) {
	dir := filepath.Join(dataDir, "submissions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create submission log dir: %w", err)
	}
	return &FileSubmissionLog{dir: dir}, nil
}

func (l *FileSubmissionLog) path(sessionID uuid.UUID) string {
	return filepath.Join(l.dir, sessionID.String()+".jsonl")
}

func (l *FileSubmissionLog) Append(sessionID uuid.UUID, sub *model.SealedSubmission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal sealed submission: %w", err)
	}

	f, err := os.OpenFile(l.path(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open submission log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append sealed submission: %w", err)
	}
	return f.Sync()
}

func (l *FileSubmissionLog) List(sessionID uuid.UUID) ([]model.SealedSubmission, error) {
	f, err := os.Open(l.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open submission log: %w", err)
	}
	defer f.Close()

	var subs []model.SealedSubmission
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sub model.SealedSubmission
		if err := json.Unmarshal(line, &sub); err != nil {
			return nil, fmt.Errorf("decode sealed submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan submission log: %w", err)
	}
	return subs, nil
}

func (l *FileSubmissionLog) Clear(sessionID uuid.UUID) error {
	err := os.Remove(l.path(sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
