package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/opportunity-engine/internal/detector"
)

// RunReport is the archived summary of one detection run.
type RunReport struct {
	OrganizationID     string          `json:"organization_id"`
	Layers             []string        `json:"layers"`
	TotalFindings      int             `json:"total_findings"`
	TotalOpportunities int             `json:"total_opportunities"`
	PerCategoryCounts  map[string]int  `json:"per_category_counts"`
	SkippedCount       int             `json:"skipped_count"`
	Skipped            []detector.Skip `json:"skipped,omitempty"`
	StartedAt          time.Time       `json:"started_at"`
	DurationMS         int64           `json:"duration_ms"`
}

// BuildRunReport summarizes a runner result plus the upsert totals the
// caller observed.
func BuildRunReport(result detector.RunResult, totalOpportunities int, perCategory map[string]int) RunReport {
	layers := make([]string, 0, len(result.Layers))
	for _, l := range result.Layers {
		layers = append(layers, string(l))
	}
	return RunReport{
		OrganizationID:     result.OrganizationID,
		Layers:             layers,
		TotalFindings:      len(result.Findings),
		TotalOpportunities: totalOpportunities,
		PerCategoryCounts:  perCategory,
		SkippedCount:       len(result.Skipped),
		Skipped:            result.Skipped,
		StartedAt:          result.StartedAt,
		DurationMS:         result.Duration.Milliseconds(),
	}
}

// RunArchive persists detection run reports to S3 for later audit.
type RunArchive struct {
	client *s3.Client
	bucket string
}

// NewRunArchive wraps an S3 client for the given bucket.
func NewRunArchive(cfg aws.Config, bucket string) *RunArchive {
	return &RunArchive{client: s3.NewFromConfig(cfg), bucket: bucket}
}

func reportKey(report RunReport) string {
	return fmt.Sprintf("runs/%s/%s/%s.json",
		report.OrganizationID,
		report.StartedAt.UTC().Format("2006/01/02"),
		report.StartedAt.UTC().Format("15-04-05"))
}

// Save archives one run report.
func (a *RunArchive) Save(ctx context.Context, report RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(reportKey(report)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting run report to S3: %w", err)
	}
	return nil
}

// Get retrieves an archived run report by key.
func (a *RunArchive) Get(ctx context.Context, key string) (RunReport, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return RunReport{}, fmt.Errorf("getting run report from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return RunReport{}, fmt.Errorf("reading run report body: %w", err)
	}

	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return RunReport{}, fmt.Errorf("unmarshaling run report: %w", err)
	}
	return report, nil
}
