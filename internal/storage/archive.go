package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const replyPrefix = "agent-replies"

// ReplyArchive stores raw agent replies that could not be parsed, so that
// failures can be inspected later.
type ReplyArchive struct {
	storage FileStorage
	now     func() time.Time
}

func NewReplyArchive(storage FileStorage) *ReplyArchive {
	return &ReplyArchive{
		storage: storage,
		now:     time.Now,
	}
}

// Archive uploads raw and returns its object key.
func (a *ReplyArchive) Archive(ctx context.Context, raw string) (string, error) {
	key := fmt.Sprintf("%s/%s/%s.txt", replyPrefix, a.now().UTC().Format("2006/01/02"), uuid.NewString())
	if err := a.storage.PutObject(ctx, key, "text/plain; charset=utf-8", []byte(raw)); err != nil {
		return "", err
	}

	if url, err := a.storage.GeneratePresignedDownloadURL(ctx, key, time.Hour); err == nil {
		log.Debugf("archived agent reply %s: %s", key, url)
	}
	return key, nil
}
