package app

import (
	"context"

	"github.com/dustin/go-humanize"

	"smartfile-qa/internal/repository"
)

type Stats struct {
	repository.Totals
	Storage        string `json:"total_storage"`
	CachedSessions int    `json:"cached_sessions"`
}

type CacheSizer interface {
	Len() int
}

type StatsService struct {
	statsRepo *repository.StatsRepository
	uploads   CacheSizer
}

func NewStatsService(statsRepo *repository.StatsRepository, uploads CacheSizer) *StatsService {
	return &StatsService{statsRepo: statsRepo, uploads: uploads}
}

func (s *StatsService) Get(ctx context.Context) (*Stats, error) {
	totals, err := s.statsRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Totals:  *totals,
		Storage: humanize.Bytes(uint64(totals.StorageBytes)),
	}
	if s.uploads != nil {
		stats.CachedSessions = s.uploads.Len()
	}
	return stats, nil
}

// Dashboard is the totals plus the newest rows of every table.
type Dashboard struct {
	Stats  *Stats             `json:"stats"`
	Recent *repository.Recent `json:"recent"`
}

func (s *StatsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.statsRepo.Recent(ctx, repository.MaxRecentRows)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Stats: stats, Recent: recent}, nil
}
