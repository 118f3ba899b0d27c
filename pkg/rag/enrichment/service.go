// Package enrichment resolves the assets referenced by a context block
// in the background: images become data URLs, tables become rendered
// rows. Results reach the stream as a metadata event without ever
// blocking chunk emission.
package enrichment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ai-deptdocs-be/pkg/rag/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// ProcessedImage is one resolved image asset. Error marks assets whose
// file could not be read; they are reported, not dropped silently.
type ProcessedImage struct {
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
	DataURL  string `json:"data_url,omitempty"`
	Error    bool   `json:"error,omitempty"`
}

// ProcessedTable is one resolved table asset.
type ProcessedTable struct {
	Caption string `json:"caption"`
	Rows    string `json:"rows"`
}

// Result is delivered once per submitted task.
type Result struct {
	TaskID  string           `json:"task_id"`
	Images  []ProcessedImage `json:"images,omitempty"`
	Tables  []ProcessedTable `json:"tables,omitempty"`
	Elapsed time.Duration    `json:"-"`
}

// TableRenderer renders a table file into row text.
type TableRenderer interface {
	RenderTable(path string) (string, error)
}

type task struct {
	TaskID string            `json:"task_id"`
	Assets []retrieval.Asset `json:"assets"`
}

// Service runs asset enrichment behind an in-process message bus. Each
// submitted task gets its own result channel and cancel handle; a
// cancelled task is acknowledged and its channel closed without a
// result.
type Service struct {
	pubSub    *gochannel.GoChannel
	topicName string
	staticDir string
	tables    TableRenderer
	logger    *log.Logger

	mu      sync.Mutex
	waiters map[string]chan *Result
	ctxs    map[string]context.Context
	cancels map[string]context.CancelFunc
}

func NewService(pubSub *gochannel.GoChannel, topicName, staticDir string, tables TableRenderer, logger *log.Logger) *Service {
	return &Service{
		pubSub:    pubSub,
		topicName: topicName,
		staticDir: staticDir,
		tables:    tables,
		logger:    logger,
		waiters:   make(map[string]chan *Result),
		ctxs:      make(map[string]context.Context),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Consume starts the worker loop. Call once at startup.
func (s *Service) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(msg)
		}
	}()

	return nil
}

// Submit publishes an enrichment task. The returned channel receives at
// most one result and is always closed; cancel stops the task early.
// Submitting an empty asset list returns an immediately closed channel.
func (s *Service) Submit(ctx context.Context, assets []retrieval.Asset) (<-chan *Result, context.CancelFunc, error) {
	results := make(chan *Result, 1)
	if len(assets) == 0 {
		close(results)
		return results, func() {}, nil
	}

	t := task{TaskID: uuid.New().String(), Assets: assets}
	payload, err := json.Marshal(t)
	if err != nil {
		close(results)
		return results, func() {}, err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.waiters[t.TaskID] = results
	s.ctxs[t.TaskID] = taskCtx
	s.cancels[t.TaskID] = cancel
	s.mu.Unlock()

	if err := s.pubSub.Publish(s.topicName, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		s.finish(t.TaskID, nil)
		return results, func() {}, fmt.Errorf("enrichment: publish failed: %w", err)
	}

	if s.logger != nil {
		s.logger.Printf("[ENRICHMENT] Submitted task %s with %d assets", t.TaskID, len(assets))
	}
	return results, cancel, nil
}

func (s *Service) processMessage(msg *message.Message) {
	var t task
	if err := json.Unmarshal(msg.Payload, &t); err != nil {
		if s.logger != nil {
			s.logger.Printf("[ENRICHMENT] Dropping unreadable task: %v", err)
		}
		msg.Ack()
		return
	}

	s.mu.Lock()
	taskCtx, ok := s.ctxs[t.TaskID]
	s.mu.Unlock()
	if !ok {
		// Waiter already gone, nothing to deliver to
		msg.Ack()
		return
	}

	start := time.Now()
	result := s.process(taskCtx, &t)
	if result != nil {
		result.Elapsed = time.Since(start)
	}
	s.finish(t.TaskID, result)
	msg.Ack()
}

// process resolves every asset, skipping the rest once the task context
// is cancelled. A nil return means the task was cancelled.
func (s *Service) process(ctx context.Context, t *task) *Result {
	result := &Result{TaskID: t.TaskID}

	for _, asset := range t.Assets {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Printf("[ENRICHMENT] Task %s cancelled", t.TaskID)
			}
			return nil
		default:
		}

		switch asset.Kind {
		case "image":
			result.Images = append(result.Images, s.processImage(asset))
		case "table":
			table, err := s.processTable(asset)
			if err != nil {
				if s.logger != nil {
					s.logger.Printf("[ENRICHMENT] Table %s failed: %v", asset.Path, err)
				}
				continue
			}
			result.Tables = append(result.Tables, table)
		}
	}
	return result
}

func (s *Service) processImage(asset retrieval.Asset) ProcessedImage {
	img := ProcessedImage{
		Filename: filepath.Base(asset.Path),
		Caption:  asset.Caption,
	}

	path := asset.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.staticDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("[ENRICHMENT] Image %s unreadable: %v", asset.Path, err)
		}
		img.Error = true
		return img
	}

	img.DataURL = fmt.Sprintf("data:%s;base64,%s", mimeType(path), base64.StdEncoding.EncodeToString(data))
	return img
}

func (s *Service) processTable(asset retrieval.Asset) (ProcessedTable, error) {
	rows, err := s.tables.RenderTable(asset.Path)
	if err != nil {
		return ProcessedTable{}, err
	}
	return ProcessedTable{Caption: asset.Caption, Rows: rows}, nil
}

// finish delivers result (possibly nil) and releases the task's entries.
func (s *Service) finish(taskID string, result *Result) {
	s.mu.Lock()
	results, ok := s.waiters[taskID]
	cancel := s.cancels[taskID]
	delete(s.waiters, taskID)
	delete(s.ctxs, taskID)
	delete(s.cancels, taskID)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !ok {
		return
	}
	if result != nil {
		results <- result
	}
	close(results)
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
