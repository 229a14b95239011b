package services

import (
	"database/sql"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/models"
)

const (
	sectorCacheExpiration      = 1 * time.Hour
	sectorCacheCleanupInterval = 2 * time.Hour

	sectorListCacheKey = "sector_multiples:all"
)

// SectorService serves sector benchmark data and turns a chosen sector into
// a valuation-method configuration. Benchmark rows are read-only reference
// data, so they sit behind a cache.
type SectorService struct {
	db    *sql.DB
	cache *cache.Cache
}

func NewSectorService(db *sql.DB) *SectorService {
	return &SectorService{
		db:    db,
		cache: cache.New(sectorCacheExpiration, sectorCacheCleanupInterval),
	}
}

// GetSector returns one benchmark row by sector code.
// Returns models.ErrSectorNotFound for unknown codes.
func (s *SectorService) GetSector(code string) (*models.SectorMultiples, error) {
	cacheKey := "sector_multiples:" + code
	if cached, found := s.cache.Get(cacheKey); found {
		sector := cached.(models.SectorMultiples)
		return &sector, nil
	}

	sector, err := models.GetSectorByCode(s.db, code)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKey, *sector, cache.DefaultExpiration)
	return sector, nil
}

// ListSectors returns all benchmark rows, cached.
func (s *SectorService) ListSectors() ([]models.SectorMultiples, error) {
	if cached, found := s.cache.Get(sectorListCacheKey); found {
		return cached.([]models.SectorMultiples), nil
	}

	sectors, err := models.ListSectors(s.db)
	if err != nil {
		return nil, err
	}

	s.cache.Set(sectorListCacheKey, sectors, cache.DefaultExpiration)
	logger.L.Debug("Sector multiples loaded from database", "count", len(sectors))
	return sectors, nil
}

// ApplySector builds a ValuationMethods configuration from a sector's
// benchmark row: the conservative toggle picks the minimum multiples, the
// average toggle picks the averages. All three methods are enabled; the
// caller may switch individual ones off afterwards. Re-applying the same
// sector and toggle yields an identical configuration.
func (s *SectorService) ApplySector(code string, useAverage bool) (*models.ValuationMethods, error) {
	sector, err := s.GetSector(code)
	if err != nil {
		return nil, err
	}

	methods := &models.ValuationMethods{
		Ebitda:    models.ValuationMethod{Enabled: true, Multiplier: sector.EbitdaMultipleMin},
		Revenue:   models.ValuationMethod{Enabled: true, Multiplier: sector.RevenueMultipleMin},
		NetProfit: models.ValuationMethod{Enabled: true, Multiplier: sector.PEMultipleMin},
	}
	if useAverage {
		methods.Ebitda.Multiplier = sector.EbitdaMultipleAvg
		methods.Revenue.Multiplier = sector.RevenueMultipleAvg
		methods.NetProfit.Multiplier = sector.PEMultipleAvg
	}
	return methods, nil
}
