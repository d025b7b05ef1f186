package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"filecast/internal/config"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// fileRecord is the Realtime Database entry announcing a published file
type fileRecord struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	MimeType  string  `json:"mimeType"`
	Publisher string  `json:"publisher"`
	Message   Message `json:"message"`
	Timestamp int64   `json:"timestamp"`
}

// FirebaseClient implements Client with Cloud Storage for file content and
// the Realtime Database for file notifications
type FirebaseClient struct {
	db           *db.Client
	bucket       *gcs.BucketHandle
	userID       string
	pollInterval time.Duration
}

func NewFirebaseClient(ctx context.Context, cfg *config.FirebaseConfig, userID string) (*FirebaseClient, error) {
	opt := option.WithCredentialsFile(cfg.CredentialsPath)

	firebaseConfig := &firebase.Config{
		ProjectID:     cfg.ProjectID,
		DatabaseURL:   cfg.DatabaseURL,
		StorageBucket: cfg.StorageBucket,
	}

	app, err := firebase.NewApp(ctx, firebaseConfig, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	dbClient, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	storageClient, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting storage client: %w", err)
	}

	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("error getting default bucket: %w", err)
	}

	return &FirebaseClient{
		db:           dbClient,
		bucket:       bucket,
		userID:       userID,
		pollInterval: cfg.PollInterval,
	}, nil
}

func (f *FirebaseClient) filesRef(channel string) *db.Ref {
	return f.db.NewRef(path.Join("channels", channel, "files"))
}

func objectPath(channel, id, name string) string {
	return path.Join("channels", channel, id, name)
}

func (f *FirebaseClient) PublishFile(ctx context.Context, channel string, file File, message Message) (PublishResult, error) {
	id := uuid.NewString()

	w := f.bucket.Object(objectPath(channel, id, file.Name)).NewWriter(ctx)
	w.ContentType = file.MimeType
	if _, err := w.Write(file.Data); err != nil {
		w.Close()
		return PublishResult{}, fmt.Errorf("error uploading %s: %w", file.Name, err)
	}
	if err := w.Close(); err != nil {
		return PublishResult{}, fmt.Errorf("error uploading %s: %w", file.Name, err)
	}

	record := fileRecord{
		ID:        id,
		Name:      file.Name,
		MimeType:  file.MimeType,
		Publisher: f.userID,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
	if _, err := f.filesRef(channel).Push(ctx, record); err != nil {
		return PublishResult{}, fmt.Errorf("error announcing %s on %s: %w", file.Name, channel, err)
	}

	logrus.Debugf("FirebaseClient: published %s as %s on %s", file.Name, id, channel)
	return PublishResult{ID: id, Name: file.Name}, nil
}

func (f *FirebaseClient) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ref := f.filesRef(channel)

	// Only files announced after subscribing are delivered.
	nodes, err := ref.OrderByKey().LimitToLast(1).GetOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading files of %s: %w", channel, err)
	}
	lastKey := ""
	if len(nodes) > 0 {
		lastKey = nodes[len(nodes)-1].Key()
	}

	sub := &firebaseSubscription{
		ref:          ref,
		channel:      channel,
		lastKey:      lastKey,
		pollInterval: f.pollInterval,
		events:       make(chan FileEvent),
		done:         make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.poll()

	logrus.Debugf("FirebaseClient: polling %s for files every %s", channel, f.pollInterval)
	return sub, nil
}

func (f *FirebaseClient) DownloadFile(ctx context.Context, channel, id, name string) ([]byte, error) {
	r, err := f.bucket.Object(objectPath(channel, id, name)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", id, name, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", name, err)
	}
	return data, nil
}

func (f *FirebaseClient) Close() error {
	return nil
}

type firebaseSubscription struct {
	ref          *db.Ref
	channel      string
	lastKey      string
	pollInterval time.Duration
	events       chan FileEvent
	done         chan struct{}
	once         sync.Once
	wg           sync.WaitGroup
}

func (s *firebaseSubscription) Events() <-chan FileEvent {
	return s.events
}

func (s *firebaseSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// poll owns the events channel and closes it on exit
func (s *firebaseSubscription) poll() {
	defer s.wg.Done()
	defer close(s.events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		query := s.ref.OrderByKey()
		if s.lastKey != "" {
			query = query.StartAt(s.lastKey)
		}
		nodes, err := query.GetOrdered(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logrus.Warnf("FirebaseClient: error polling %s: %v", s.channel, err)
			}
			continue
		}

		for _, node := range nodes {
			if node.Key() == s.lastKey {
				continue
			}
			s.lastKey = node.Key()

			var record fileRecord
			if err := node.Unmarshal(&record); err != nil {
				logrus.Warnf("FirebaseClient: malformed file record %s on %s: %v", node.Key(), s.channel, err)
				continue
			}

			event := FileEvent{
				FileID:    record.ID,
				FileName:  record.Name,
				Publisher: record.Publisher,
				Channel:   s.channel,
				Timetoken: record.Timestamp,
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}
