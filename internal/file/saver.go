package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"filecast/internal/app"
	"filecast/pkg/utils"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotDirectory = errors.New("destination is not a directory")
	ErrInvalidName  = errors.New("file id or name cannot be used as a file name")
)

// Saver writes every successfully downloaded file into a directory
type Saver struct {
	dir string
	log *logrus.Entry
}

// NewSaver creates dir if needed and returns a Saver writing into it
func NewSaver(dir string) (*Saver, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Saver{
		dir: dir,
		log: logrus.WithField("component", "saver"),
	}, nil
}

// Path returns where the file announced by id and name is saved.
// The id prefix keeps repeated uploads of the same name apart. Both parts
// come from the channel and are reduced to a single path element.
func (s *Saver) Path(id, name string) (string, error) {
	safeID, err := pathElement(id)
	if err != nil {
		return "", err
	}
	safeName, err := pathElement(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s", safeID, safeName)), nil
}

func pathElement(v string) (string, error) {
	base := filepath.Base(filepath.Clean(v))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, v)
	}
	return base, nil
}

// OnDownload is a download listener saving Succeeded states
func (s *Saver) OnDownload(state app.DownloadState) {
	if state.Phase != app.Succeeded || state.Event == nil {
		return
	}

	dst, err := s.Path(state.Event.FileID, state.Event.FileName)
	if err != nil {
		s.log.Errorf("Not saving %s: %v", state.Event.FileID, err)
		return
	}
	if err := os.WriteFile(dst, state.Raw, 0644); err != nil {
		s.log.Errorf("Failed to save %s: %v", dst, err)
		return
	}
	s.log.Infof("Saved %s (%s)", dst, utils.FormatFileSize(int64(len(state.Raw))))
}
