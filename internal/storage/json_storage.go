package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"tech-ai-bot/internal/core/domain"
	"tech-ai-bot/internal/core/ports"
)

// JSONStorage is the flat-file fallback. Every mutation rewrites the file.
type JSONStorage struct {
	FilePath string
	mu       sync.RWMutex
	Data     StorageData
}

type StorageData struct {
	Queue   map[string]jsonItem  `json:"queue"`
	Meta    map[string]string    `json:"meta"`
	Replied map[string]jsonReply `json:"replied"`
}

type jsonItem struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Link        string     `json:"link,omitempty"`
	Source      string     `json:"source,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type jsonReply struct {
	ReplyID   string    `json:"reply_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewJSONStorage(filePath string) (*JSONStorage, error) {
	if filePath == "" {
		filePath = "data/state.json"
	}
	s := &JSONStorage{
		FilePath: filePath,
		Data: StorageData{
			Queue:   make(map[string]jsonItem),
			Meta:    make(map[string]string),
			Replied: make(map[string]jsonReply),
		},
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := s.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

var _ ports.Storage = (*JSONStorage)(nil)

func (s *JSONStorage) loadFromFile() error {
	file, err := os.ReadFile(s.FilePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(file, &s.Data); err != nil {
		return fmt.Errorf("parse %s: %w", s.FilePath, err)
	}
	if s.Data.Queue == nil {
		s.Data.Queue = make(map[string]jsonItem)
	}
	if s.Data.Meta == nil {
		s.Data.Meta = make(map[string]string)
	}
	if s.Data.Replied == nil {
		s.Data.Replied = make(map[string]jsonReply)
	}
	return nil
}

// saveToFile writes through a temp file so a crash never leaves a torn state file.
func (s *JSONStorage) saveToFile() error {
	data, err := json.MarshalIndent(s.Data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.FilePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.FilePath)
}

func (s *JSONStorage) Close() error { return nil }

func (s *JSONStorage) EnqueueItem(_ context.Context, item domain.QueueItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Data.Queue[item.Fingerprint]; ok {
		return false, nil
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	s.Data.Queue[item.Fingerprint] = jsonItem{
		Title:     item.Title,
		Summary:   item.Summary,
		Link:      item.Link,
		Source:    item.Source,
		Status:    string(domain.StatusPending),
		CreatedAt: item.CreatedAt.UTC(),
	}
	if err := s.saveToFile(); err != nil {
		delete(s.Data.Queue, item.Fingerprint)
		return false, err
	}
	return true, nil
}

func (s *JSONStorage) ListItems(_ context.Context, status domain.Status, limit int) ([]domain.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.QueueItem
	for fp, it := range s.Data.Queue {
		if status != "" && it.Status != string(status) {
			continue
		}
		res = append(res, domain.QueueItem{
			Fingerprint: fp,
			Title:       it.Title,
			Summary:     it.Summary,
			Link:        it.Link,
			Source:      it.Source,
			Status:      domain.Status(it.Status),
			CreatedAt:   it.CreatedAt,
			PublishedAt: it.PublishedAt,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].Fingerprint < res[j].Fingerprint
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *JSONStorage) RecordPublish(_ context.Context, fingerprint, day string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prevItem jsonItem
	if fingerprint != "" {
		it, ok := s.Data.Queue[fingerprint]
		if !ok || it.Status != string(domain.StatusPending) {
			return 0, fmt.Errorf("%s: %w", fingerprint, ErrNotPending)
		}
		prevItem = it
		t := at.UTC()
		it.Status = string(domain.StatusPublished)
		it.PublishedAt = &t
		s.Data.Queue[fingerprint] = it
	}

	key := domain.DailyCountKey(day)
	prevCount, hadCount := s.Data.Meta[key]
	n, _ := strconv.Atoi(prevCount)
	n++
	s.Data.Meta[key] = strconv.Itoa(n)

	if err := s.saveToFile(); err != nil {
		if fingerprint != "" {
			s.Data.Queue[fingerprint] = prevItem
		}
		if hadCount {
			s.Data.Meta[key] = prevCount
		} else {
			delete(s.Data.Meta, key)
		}
		return 0, err
	}
	return n, nil
}

func (s *JSONStorage) DailyCount(_ context.Context, day string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.Data.Meta[domain.DailyCountKey(day)]
	if !ok {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (s *JSONStorage) GetMeta(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Data.Meta[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	return v, nil
}

func (s *JSONStorage) SetMeta(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.Data.Meta[key]
	s.Data.Meta[key] = value
	if err := s.saveToFile(); err != nil {
		s.restoreMeta(key, prev, had)
		return err
	}
	return nil
}

func (s *JSONStorage) restoreMeta(key, prev string, had bool) {
	if had {
		s.Data.Meta[key] = prev
	} else {
		delete(s.Data.Meta, key)
	}
}

func (s *JSONStorage) LoadCursor(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.Data.Meta[domain.MetaLastMentionID]; ok {
		return v, nil
	}
	return domain.CursorSentinel, nil
}

func (s *JSONStorage) AdvanceCursor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.Data.Meta[domain.MetaLastMentionID]
	if ok && domain.CompareIDs(id, cur) <= 0 {
		return nil
	}
	s.Data.Meta[domain.MetaLastMentionID] = id
	if err := s.saveToFile(); err != nil {
		s.restoreMeta(domain.MetaLastMentionID, cur, ok)
		return err
	}
	return nil
}

func (s *JSONStorage) HasReplied(_ context.Context, mentionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.Data.Replied[mentionID]
	return ok, nil
}

func (s *JSONStorage) RecordReply(_ context.Context, rec domain.ReplyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Data.Replied[rec.MentionID]; ok {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.Data.Replied[rec.MentionID] = jsonReply{ReplyID: rec.ReplyID, CreatedAt: rec.CreatedAt.UTC()}
	if err := s.saveToFile(); err != nil {
		delete(s.Data.Replied, rec.MentionID)
		return err
	}
	return nil
}
