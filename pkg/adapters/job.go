package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cloudlens/advisor-hub/pkg/models/api"
	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/models/store"
)

func MapDomainStatisticsToAPI(s *domain.Statistics) *api.Statistics {
	if s == nil {
		return nil
	}
	out := &api.Statistics{
		TotalCount:              s.TotalCount,
		CategoryDistribution:    make(map[string]int, len(s.CategoryDistribution)),
		ImpactDistribution:      make(map[string]int, len(s.ImpactDistribution)),
		TotalPotentialSavings:   s.TotalPotentialSavings.String(),
		AverageSavingsPerRecord: s.AverageSavingsPerRecord.String(),
		Currency:                s.Currency,
	}
	for c, n := range s.CategoryDistribution {
		out.CategoryDistribution[string(c)] = n
	}
	for i, n := range s.ImpactDistribution {
		out.ImpactDistribution[string(i)] = n
	}
	for _, tr := range s.TopRecords {
		r := tr.Recommendation
		out.TopRecords = append(out.TopRecords, api.TopRecord{
			Rank:             tr.Rank,
			ResourceName:     r.ResourceName,
			ResourceGroup:    r.ResourceGroup,
			ResourceType:     r.ResourceType,
			Category:         string(r.Category),
			BusinessImpact:   string(r.BusinessImpact),
			PotentialSavings: r.PotentialSavings.String(),
			Recommendation:   r.Recommendation,
		})
	}
	return out
}

func MapAPIStatisticsToDomain(s *api.Statistics) (*domain.Statistics, error) {
	if s == nil {
		return nil, nil
	}
	total, err := decimal.NewFromString(s.TotalPotentialSavings)
	if err != nil {
		return nil, fmt.Errorf("parse total savings: %w", err)
	}
	avg, err := decimal.NewFromString(s.AverageSavingsPerRecord)
	if err != nil {
		return nil, fmt.Errorf("parse average savings: %w", err)
	}
	out := &domain.Statistics{
		TotalCount:              s.TotalCount,
		CategoryDistribution:    make(map[domain.Category]int, len(s.CategoryDistribution)),
		ImpactDistribution:      make(map[domain.Impact]int, len(s.ImpactDistribution)),
		TotalPotentialSavings:   total,
		AverageSavingsPerRecord: avg,
		Currency:                s.Currency,
	}
	for c, n := range s.CategoryDistribution {
		out.CategoryDistribution[domain.Category(c)] = n
	}
	for i, n := range s.ImpactDistribution {
		out.ImpactDistribution[domain.Impact(i)] = n
	}
	for _, tr := range s.TopRecords {
		savings, err := decimal.NewFromString(tr.PotentialSavings)
		if err != nil {
			return nil, fmt.Errorf("parse top record savings: %w", err)
		}
		out.TopRecords = append(out.TopRecords, domain.RankedRecommendation{
			Rank: tr.Rank,
			Recommendation: domain.Recommendation{
				Category:         domain.Category(tr.Category),
				BusinessImpact:   domain.Impact(tr.BusinessImpact),
				PotentialSavings: savings,
				Currency:         s.Currency,
				ResourceGroup:    tr.ResourceGroup,
				ResourceName:     tr.ResourceName,
				ResourceType:     tr.ResourceType,
				Recommendation:   tr.Recommendation,
			},
		})
	}
	return out, nil
}

func MapDomainJobToStore(job *domain.ReportJob) (*store.ReportJob, error) {
	formats := make([]string, 0, len(job.RequestedFormats))
	for _, f := range job.RequestedFormats {
		formats = append(formats, string(f))
	}
	sort.Strings(formats)

	row := &store.ReportJob{
		ID:                job.ID,
		OwnerRef:          job.OwnerRef,
		DedupeKey:         job.DedupeKey,
		State:             string(job.State),
		SourceKey:         job.SourceUpload.Key,
		SourceFilename:    job.SourceUpload.Filename,
		SourceSize:        job.SourceUpload.ContentLength,
		Formats:           strings.Join(formats, ","),
		TemplateID:        job.TemplateID,
		RowErrors:         job.Warnings.RowErrors,
		Coercions:         job.Warnings.Coercions,
		UnknownCategories: job.Warnings.UnknownCategories,
		AttemptCount:      job.AttemptCount,
		CreatedAt:         job.CreatedAt,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
	}
	if job.ErrorCategory != nil {
		cat := string(*job.ErrorCategory)
		row.ErrorCategory = &cat
	}
	if job.Statistics != nil {
		data, err := json.Marshal(MapDomainStatisticsToAPI(job.Statistics))
		if err != nil {
			return nil, fmt.Errorf("marshal statistics: %w", err)
		}
		row.Statistics = data
	}
	if len(job.Artifacts) > 0 {
		data, err := json.Marshal(job.Artifacts)
		if err != nil {
			return nil, fmt.Errorf("marshal artifacts: %w", err)
		}
		row.Artifacts = data
	}
	return row, nil
}

func MapStoreJobToDomain(row *store.ReportJob) (*domain.ReportJob, error) {
	job := &domain.ReportJob{
		ID:        row.ID,
		OwnerRef:  row.OwnerRef,
		DedupeKey: row.DedupeKey,
		State:     domain.JobState(row.State),
		SourceUpload: domain.UploadRef{
			Key:           row.SourceKey,
			Filename:      row.SourceFilename,
			ContentLength: row.SourceSize,
		},
		TemplateID: row.TemplateID,
		Warnings: domain.NormalizationWarnings{
			RowErrors:         row.RowErrors,
			Coercions:         row.Coercions,
			UnknownCategories: row.UnknownCategories,
		},
		AttemptCount: row.AttemptCount,
		CreatedAt:    row.CreatedAt,
		StartedAt:    row.StartedAt,
		CompletedAt:  row.CompletedAt,
	}
	if row.Formats != "" {
		for _, f := range strings.Split(row.Formats, ",") {
			format, ok := domain.ParseFormat(f)
			if !ok {
				return nil, fmt.Errorf("unknown artifact format %q", f)
			}
			job.RequestedFormats = append(job.RequestedFormats, format)
		}
	}
	if row.ErrorCategory != nil {
		cat := domain.ErrorCategory(*row.ErrorCategory)
		job.ErrorCategory = &cat
	}
	if len(row.Statistics) > 0 {
		var apiStats api.Statistics
		if err := json.Unmarshal(row.Statistics, &apiStats); err != nil {
			return nil, fmt.Errorf("unmarshal statistics: %w", err)
		}
		stats, err := MapAPIStatisticsToDomain(&apiStats)
		if err != nil {
			return nil, err
		}
		job.Statistics = stats
	}
	if len(row.Artifacts) > 0 {
		artifacts := map[domain.ArtifactFormat]string{}
		if err := json.Unmarshal(row.Artifacts, &artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
		job.Artifacts = artifacts
	}
	return job, nil
}

func MapDomainJobToAPI(job *domain.ReportJob) api.Job {
	out := api.Job{
		ID:           job.ID,
		State:        string(job.State),
		Filename:     job.SourceUpload.Filename,
		TemplateID:   job.TemplateID,
		AttemptCount: job.AttemptCount,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
	for _, f := range job.RequestedFormats {
		out.Formats = append(out.Formats, string(f))
	}
	if job.ErrorCategory != nil {
		out.ErrorCategory = string(*job.ErrorCategory)
	}
	// Artifacts are only exposed once the job is fully completed.
	if job.State == domain.JobStateCompleted {
		out.Statistics = MapDomainStatisticsToAPI(job.Statistics)
		if len(job.Artifacts) > 0 {
			out.Artifacts = make(map[string]string, len(job.Artifacts))
			for f, key := range job.Artifacts {
				out.Artifacts[string(f)] = key
			}
		}
	}
	if job.Warnings != (domain.NormalizationWarnings{}) {
		out.Warnings = &api.Warnings{
			RowErrors:         job.Warnings.RowErrors,
			Coercions:         job.Warnings.Coercions,
			UnknownCategories: job.Warnings.UnknownCategories,
		}
	}
	return out
}
