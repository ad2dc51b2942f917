package domain

import (
	"time"
)

// Product representa o item principal do catálogo (a Entidade).
// O ID é o identificador externo estável usado pelas vendas; o estoque
// é controlado por tamanho, na coleção ordenada Sizes.
type Product struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Code           string    `json:"code"` // Código único do produto (SKU)
	Price          float64   `json:"price"`
	Image          string    `json:"image"`
	CategoryID     string    `json:"category_id"`
	ManufacturerID string    `json:"manufacturer_id"`
	IsVisible      bool      `json:"is_visible"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Sizes é a coleção ordenada de estoques por tamanho.
	// Um produto sem tamanhos definidos não controla estoque.
	Sizes []SizeStock `json:"sizes"`
}

// SizeStock representa o nível de estoque de um tamanho específico do produto.
// Invariante: Stock nunca é negativo.
type SizeStock struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`     // Rótulo do tamanho (e.g., "M", "42")
	Stock     int    `json:"stock"`    // Quantidade disponível (>= 0)
	Position  int    `json:"position"` // Ordem de exibição
}

// TotalStock calcula o estoque total do produto (soma de todos os tamanhos).
func (p Product) TotalStock() int {
	total := 0
	for _, s := range p.Sizes {
		total += s.Stock
	}
	return total
}

// FindSize localiza o estoque de um tamanho pelo rótulo.
// Retorna false quando o tamanho não está definido para o produto.
func (p Product) FindSize(size string) (SizeStock, bool) {
	for _, s := range p.Sizes {
		if s.Size == size {
			return s, true
		}
	}
	return SizeStock{}, false
}

// --- Interfaces de Contrato ---

// ProductService é a interface que a camada de Serviço (Catalog Lookup) DEVE implementar.
// Ela define o que o Handler (Camada API) pode pedir para a camada de Serviço fazer.
type ProductService interface {
	CreateProduct(ctx Context, product Product) (Product, error)
	GetProductByID(ctx Context, id string) (Product, error)
	GetSizeStock(ctx Context, productID, size string) (SizeStock, error)
	ListProducts(ctx Context, filter ProductFilter) ([]Product, error)
	UpdateProduct(ctx Context, product Product) error
}

// ProductRepository é a interface que a camada de Repositório (Data Access) DEVE implementar.
// O núcleo nunca altera metadados do catálogo por aqui — apenas lê; mutação de
// estoque passa exclusivamente pelo Stock Adjustment Engine (stockrepo).
type ProductRepository interface {
	Save(ctx Context, product Product) (Product, error)
	FindByID(ctx Context, id string) (Product, error)
	FindAll(ctx Context, filter ProductFilter) ([]Product, error)
	Update(ctx Context, product Product) error
}

// --- Estruturas Auxiliares ---

// ProductFilter define os parâmetros de busca e paginação do catálogo.
type ProductFilter struct {
	Page        int
	Limit       int
	Title       string
	Code        string
	VisibleOnly bool
}

// Context é uma interface que encapsula o Go context.Context.
// É usado para propagar o timeout e sinais de cancelamento pelas camadas.
type Context interface{}
