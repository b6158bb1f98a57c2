package entity

import "time"

// StockEntry es la unidad de verdad del ledger: cantidades por (ubicación, producto).
// Solo el ledger la modifica; los tres buckets son siempre >= 0.
type StockEntry struct {
	StorageUnitID string
	ProductID     string
	Available     int64
	Reserved      int64
	InTransit     int64
	Version       int64
	UpdatedAt     time.Time
}

// Total cantidad física registrada en la ubicación (disponible + reservado + en tránsito).
func (e StockEntry) Total() int64 {
	return e.Available + e.Reserved + e.InTransit
}

// NonNegative indica si los tres buckets cumplen el invariante de no negatividad.
func (e StockEntry) NonNegative() bool {
	return e.Available >= 0 && e.Reserved >= 0 && e.InTransit >= 0
}

// StockKey clave compuesta de una entrada del ledger.
type StockKey struct {
	StorageUnitID string
	ProductID     string
}

// Key devuelve la clave de la entrada.
func (e StockEntry) Key() StockKey {
	return StockKey{StorageUnitID: e.StorageUnitID, ProductID: e.ProductID}
}
