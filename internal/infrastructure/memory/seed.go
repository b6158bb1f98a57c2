package memory

import "github.com/jhoicas/fbs-core/internal/domain/entity"

// SeedMarketplace registra una integración. El alta de marketplaces vive fuera del núcleo.
func (s *Store) SeedMarketplace(m entity.Marketplace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketplaces[m.ID] = cloneMarketplace(m)
}
