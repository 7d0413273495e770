package audit

import (
	"context"

	"payshield-service/internal/bucketing"
	"payshield-service/internal/models"
)

// DocumentIndexer is satisfied by client.ESClient.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, id string, document interface{}) error
}

// ElasticsearchSink indexes attempts by id so support staff can search them.
// Re-indexing the same id overwrites, which makes retries harmless.
type ElasticsearchSink struct {
	indexer DocumentIndexer
	buckets *bucketing.BucketingManager
}

func NewElasticsearchSink(indexer DocumentIndexer, buckets *bucketing.BucketingManager) *ElasticsearchSink {
	return &ElasticsearchSink{indexer: indexer, buckets: buckets}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) ObserveAttempt(ctx context.Context, a *models.VerificationAttempt) error {
	return s.indexer.IndexDocument(ctx, a.ID, NewAttemptEvent(a, s.buckets))
}
