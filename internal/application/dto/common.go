package dto

// PageRequest paginación de listados (?limit=&offset=).
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// Normalize aplica def cuando Limit no viene, lo acota a maxLimit y descarta offsets negativos.
func (p PageRequest) Normalize(def, maxLimit int) PageRequest {
	if p.Limit <= 0 {
		p.Limit = def
	}
	p.Limit = min(p.Limit, maxLimit)
	p.Offset = max(p.Offset, 0)
	return p
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ErrorResponse cuerpo de error HTTP. Code es estable entre versiones (INSUFFICIENT_STOCK, OVER_RECEIPT...).
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
