package models

// AlmacenStock is the per-warehouse block of the stock feed.
type AlmacenStock struct {
	Total      int `json:"total"`
	Disponible int `json:"disponible"`
}

// ProductoStock is one record of stock_generales.json, consumed by the chat
// backend. Records failing validation abort the whole feed.
type ProductoStock struct {
	Codigo           string                  `json:"codigo" binding:"required"`
	Nombre           string                  `json:"nombre" binding:"required"`
	Linea            string                  `json:"linea" binding:"required"`
	Ean              string                  `json:"ean"`
	Ean14            string                  `json:"ean_14"`
	Precio           float64                 `json:"precio"`
	CanKgUm          float64                 `json:"can_kg_um"`
	UPorCaja         int                     `json:"u_por_caja"`
	StockReferencial int                     `json:"stock_referencial"`
	Almacenes        map[string]AlmacenStock `json:"almacenes" binding:"dive"`
}

// ProductoLocal is one record of productos_local.json for the web catalog.
type ProductoLocal struct {
	Codigo           string  `json:"codigo"`
	Nombre           string  `json:"nombre"`
	Linea            string  `json:"linea"`
	Ean              string  `json:"ean"`
	Ean14            string  `json:"ean_14"`
	Precio           float64 `json:"precio"`
	CanKgUm          float64 `json:"can_kg_um"`
	UPorCaja         int     `json:"u_por_caja"`
	StockReferencial int     `json:"stock_referencial"`
	Keywords         string  `json:"keywords"`
}
