package domain

// AdjustmentMode discrimina o modo de uma requisição de ajuste de estoque.
type AdjustmentMode string

const (
	// AdjustmentSell decrementa o estoque de um tamanho (usado pelo commit de venda).
	// Estoque insuficiente é falha dura: a venda inteira é rejeitada, nunca
	// há clamp silencioso para zero.
	AdjustmentSell AdjustmentMode = "sell"
	// AdjustmentSetAbsolute substitui o estoque de um tamanho por um valor absoluto.
	// Valores negativos são clampados para zero.
	AdjustmentSetAbsolute AdjustmentMode = "set_absolute"
	// AdjustmentReplaceAll substitui a lista completa de tamanhos do produto.
	AdjustmentReplaceAll AdjustmentMode = "replace_all"
)

// SizeStockInput é um par tamanho/estoque usado no modo replace_all.
type SizeStockInput struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

// StockAdjustmentRequest é o payload de uma requisição de ajuste de estoque.
// O modo determina quais campos são relevantes:
//   - sell:         ProductID, Size, Quantity
//   - set_absolute: ProductID, Size, NewStock
//   - replace_all:  ProductID, Sizes
type StockAdjustmentRequest struct {
	Mode      AdjustmentMode   `json:"mode"`
	ProductID string           `json:"product_id"`
	Size      string           `json:"size,omitempty"`
	Quantity  int              `json:"quantity,omitempty"`
	NewStock  int              `json:"new_stock,omitempty"`
	Sizes     []SizeStockInput `json:"sizes,omitempty"`
}

// StockService define o contrato de lógica de negócio do motor de ajuste de estoque.
// Retorna o produto atualizado com o estoque total recalculado.
type StockService interface {
	AdjustStock(ctx Context, adjustment StockAdjustmentRequest) (Product, error)
}
