package outputs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// errOutputClosed is returned by Write after Close
var errOutputClosed = errors.New("elasticsearch output is shutting down")

// indexDatePatterns maps index pattern tokens to time layouts, longest first
var indexDatePatterns = []struct {
	token  string
	layout string
}{
	{"%{+yyyy.MM.dd}", "2006.01.02"},
	{"%{+yyyy.MM}", "2006.01"},
	{"%{+yyyy}", "2006"},
}

// ElasticsearchOutput bulk-indexes audit documents
type ElasticsearchOutput struct {
	config        *config.ElasticsearchConfig
	bulkIndexer   esutil.BulkIndexer
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	resultChannel chan *models.AuditResult
}

// auditDocument is the indexed shape: vitals keyed by metric so they can be
// queried as fields
type auditDocument struct {
	*models.AuditResult
	VitalValues  map[string]float64 `json:"vital_values,omitempty"`
	VitalRatings map[string]string  `json:"vital_ratings,omitempty"`
}

// NewElasticsearchOutput connects to Elasticsearch and starts the indexing
// worker. Returns nil when disabled.
func NewElasticsearchOutput(cfg *config.ElasticsearchConfig) (*ElasticsearchOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	esCfg := elasticsearch.Config{
		Addresses:     []string{cfg.Endpoint},
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * cfg.RetryBackoff
		},
	}

	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	if cfg.TLSSkipVerify {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.Status())
	}

	log.Printf("Connected to Elasticsearch at %s", cfg.Endpoint)

	bulkIndexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		NumWorkers:    2,
		FlushBytes:    cfg.BulkSize * 1024,
		FlushInterval: cfg.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			log.Printf("Elasticsearch bulk indexer error: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	return newElasticsearchOutput(cfg, bulkIndexer), nil
}

func newElasticsearchOutput(cfg *config.ElasticsearchConfig, indexer esutil.BulkIndexer) *ElasticsearchOutput {
	ctx, cancel := context.WithCancel(context.Background())

	e := &ElasticsearchOutput{
		config:        cfg,
		bulkIndexer:   indexer,
		ctx:           ctx,
		cancel:        cancel,
		resultChannel: make(chan *models.AuditResult, 100),
	}

	e.wg.Add(1)
	go e.processResults()

	return e
}

// processResults indexes queued results until shutdown, then drains the queue
func (e *ElasticsearchOutput) processResults() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			for {
				select {
				case result := <-e.resultChannel:
					e.index(context.Background(), result)
				default:
					return
				}
			}
		case result := <-e.resultChannel:
			e.index(e.ctx, result)
		}
	}
}

func (e *ElasticsearchOutput) index(ctx context.Context, result *models.AuditResult) {
	if err := e.indexResult(ctx, result); err != nil {
		log.Printf("Failed to index audit to Elasticsearch: %v", err)
	}
}

// indexResult adds one audit document to the bulk indexer
func (e *ElasticsearchOutput) indexResult(ctx context.Context, result *models.AuditResult) error {
	data, err := json.Marshal(newAuditDocument(result))
	if err != nil {
		return fmt.Errorf("failed to marshal audit: %w", err)
	}

	return e.bulkIndexer.Add(ctx, esutil.BulkIndexerItem{
		Action:     "index",
		Index:      formatIndexName(e.config.IndexPattern, result.Timestamp),
		DocumentID: result.AuditID,
		Body:       bytes.NewReader(data),
		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err != nil {
				log.Printf("Elasticsearch indexing error: %v", err)
			} else {
				log.Printf("Elasticsearch indexing failed: %s: %s", res.Error.Type, res.Error.Reason)
			}
		},
	})
}

func newAuditDocument(result *models.AuditResult) auditDocument {
	doc := auditDocument{AuditResult: result}
	if len(result.Vitals) == 0 {
		return doc
	}
	doc.VitalValues = make(map[string]float64, len(result.Vitals))
	doc.VitalRatings = make(map[string]string, len(result.Vitals))
	for _, v := range result.Vitals {
		doc.VitalValues[v.Metric] = v.Value
		doc.VitalRatings[v.Metric] = v.Rating
	}
	return doc
}

// formatIndexName expands the date tokens of pattern for t (UTC)
func formatIndexName(pattern string, t time.Time) string {
	name := pattern
	for _, p := range indexDatePatterns {
		name = strings.ReplaceAll(name, p.token, t.UTC().Format(p.layout))
	}
	return name
}

// Write queues an audit for indexing. A full queue drops the audit.
func (e *ElasticsearchOutput) Write(result *models.AuditResult) error {
	if e == nil {
		return nil
	}

	select {
	case <-e.ctx.Done():
		return errOutputClosed
	default:
	}

	select {
	case e.resultChannel <- result:
		return nil
	default:
		log.Printf("Warning: Elasticsearch result channel is full, dropping audit for %s", result.Site.Name)
		return nil
	}
}

// Name returns the output module name
func (e *ElasticsearchOutput) Name() string {
	return "elasticsearch"
}

// Close flushes pending documents
func (e *ElasticsearchOutput) Close() error {
	if e == nil {
		return nil
	}

	log.Println("Shutting down Elasticsearch output...")

	e.cancel()
	e.wg.Wait()

	if err := e.bulkIndexer.Close(context.Background()); err != nil {
		log.Printf("Error closing Elasticsearch bulk indexer: %v", err)
		return err
	}

	stats := e.bulkIndexer.Stats()
	log.Printf("Elasticsearch indexer stats: %d indexed, %d failed", stats.NumIndexed, stats.NumFailed)

	return nil
}
