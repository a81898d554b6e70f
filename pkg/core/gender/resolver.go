package gender

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/model"
)

// Record is one cached classification
type Record struct {
	Email  string
	Name   string
	Gender model.Gender
}

// Query asks the classifier about one person. ID is the person's email.
type Query struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Cache stores classifications so each person is only sent to the classifier once
type Cache interface {
	ListGenders(ctx context.Context) ([]Record, error)
	SaveGenders(ctx context.Context, records []Record) error
}

// Classifier guesses genders from names. Implemented by genderclient.Client.
type Classifier interface {
	Classify(ctx context.Context, queries []Query) (map[string]model.Gender, error)
}

// Resolver returns a gender per normalized email. Applicants it cannot place are GenderUnknown.
type Resolver interface {
	Resolve(ctx context.Context, applicants []model.Applicant) (map[string]model.Gender, error)
}

// CachedResolver reads the cache, classifies only the people it has never seen and saves the
// new results back to the cache
type CachedResolver struct {
	cache      Cache
	classifier Classifier
	logger     *zap.Logger
}

// NewCachedResolver creates a CachedResolver. A nil classifier resolves from the cache only.
func NewCachedResolver(cache Cache, classifier Classifier, logger *zap.Logger) *CachedResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedResolver{cache: cache, classifier: classifier, logger: logger}
}

func (r *CachedResolver) Resolve(ctx context.Context, applicants []model.Applicant) (map[string]model.Gender, error) {
	records, err := r.cache.ListGenders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gender cache: %w", err)
	}

	known := make(map[string]model.Gender, len(records))
	for _, rec := range records {
		email := model.NormalizeEmail(rec.Email)
		if email == "" {
			continue
		}
		if _, exists := known[email]; !exists {
			known[email] = model.ParseGender(string(rec.Gender))
		}
	}

	var queries []Query
	queued := make(map[string]bool)
	for _, a := range applicants {
		email := model.NormalizeEmail(a.Email)
		if email == "" || queued[email] {
			continue
		}
		if _, ok := known[email]; ok {
			continue
		}
		queued[email] = true
		queries = append(queries, Query{ID: email, Name: a.Name})
	}

	r.logger.Debug("Resolving genders",
		zap.Int("cached", len(known)),
		zap.Int("toClassify", len(queries)))

	if len(queries) > 0 && r.classifier != nil {
		classified, err := r.classifier.Classify(ctx, queries)
		if err != nil {
			return nil, fmt.Errorf("failed to classify genders: %w", err)
		}

		newRecords := make([]Record, 0, len(classified))
		for _, q := range queries {
			g, ok := classified[q.ID]
			if !ok || g == model.GenderUnknown {
				continue
			}
			known[q.ID] = g
			newRecords = append(newRecords, Record{Email: q.ID, Name: q.Name, Gender: g})
		}

		if len(newRecords) > 0 {
			if err := r.cache.SaveGenders(ctx, newRecords); err != nil {
				// The classification is still usable for this run
				r.logger.Warn("Failed to save genders to cache", zap.Error(err), zap.Int("count", len(newRecords)))
			}
		}
	}

	result := make(map[string]model.Gender, len(applicants))
	for _, a := range applicants {
		email := model.NormalizeEmail(a.Email)
		if g, ok := known[email]; ok {
			result[email] = g
		} else {
			result[email] = model.GenderUnknown
		}
	}
	return result, nil
}

// Apply returns a copy of applicants with genders filled in from genders
func Apply(applicants []model.Applicant, genders map[string]model.Gender) []model.Applicant {
	out := make([]model.Applicant, len(applicants))
	for i, a := range applicants {
		g, ok := genders[model.NormalizeEmail(a.Email)]
		if !ok {
			g = model.GenderUnknown
		}
		a.Gender = g
		out[i] = a
	}
	return out
}
