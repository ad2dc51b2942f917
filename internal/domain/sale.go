package domain

import (
	"time"
)

// PaymentMethod é um tipo string para representar a forma de pagamento da venda.
type PaymentMethod string

// Constantes para as formas de pagamento aceitas.
const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// IsValid verifica se a forma de pagamento é uma das aceitas.
func (p PaymentMethod) IsValid() bool {
	return p == PaymentCash || p == PaymentCard
}

// Sale representa o cabeçalho de uma venda registrada (o Ledger).
// Uma venda é criada uma única vez, em uma única transação atômica,
// junto com todos os seus itens.
type Sale struct {
	ID            string        `json:"id"`
	TotalAmount   float64       `json:"total_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Notes         string        `json:"notes,omitempty"`
	SubmittedBy   string        `json:"submitted_by"` // ID do usuário que registrou a venda
	CreatedAt     time.Time     `json:"created_at"`

	// Items é a coleção ordenada de itens da venda (ordem de submissão do cliente).
	Items []SaleItem `json:"items"`
}

// LineKind discrimina o tipo de um item de venda.
type LineKind string

const (
	// LineKindCatalog é um item vinculado a um produto do catálogo (afeta estoque).
	LineKindCatalog LineKind = "catalog"
	// LineKindManual é um item avulso, sem vínculo com o catálogo (sem efeito de estoque).
	LineKindManual LineKind = "manual"
)

// CatalogLine é o payload de um item de catálogo: a referência viva ao produto.
// Usada apenas para resolução/estoque; a exibição histórica usa o Snapshot.
type CatalogLine struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"` // Vazio para produtos sem controle por tamanho
}

// ManualLine é o payload de um item manual: título/código livres, sem catálogo.
type ManualLine struct {
	Title string `json:"title"`
	Code  string `json:"code,omitempty"`
}

// ItemSnapshot é a cópia imutável dos campos do produto, congelada no momento
// da venda. Edições posteriores do catálogo nunca alteram registros históricos.
type ItemSnapshot struct {
	Title     string  `json:"title"`
	Code      string  `json:"code"`
	Image     string  `json:"image,omitempty"`
	Size      string  `json:"size,omitempty"`
	UnitPrice float64 `json:"unit_price"`
}

// SaleItem representa uma linha de venda. Kind discrimina o payload:
// exatamente um entre Catalog e Manual é não-nulo.
// Invariante: FinalPrice = UnitPrice*Quantity - Discount, Discount <= UnitPrice*Quantity.
type SaleItem struct {
	ID         string       `json:"id"`
	SaleID     string       `json:"sale_id"`
	Position   int          `json:"position"` // Ordem de submissão dentro da venda
	Kind       LineKind     `json:"kind"`
	Catalog    *CatalogLine `json:"catalog,omitempty"`
	Manual     *ManualLine  `json:"manual,omitempty"`
	Quantity   int          `json:"quantity"`
	UnitPrice  float64      `json:"unit_price"`
	Discount   float64      `json:"discount"`
	FinalPrice float64      `json:"final_price"`
	Snapshot   ItemSnapshot `json:"snapshot"`
}

// FreezeSnapshot constrói o snapshot imutável de um item de catálogo a partir
// do estado atual do produto. É o passo explícito de "congelamento" no commit.
func FreezeSnapshot(product Product, size string, unitPrice float64) ItemSnapshot {
	return ItemSnapshot{
		Title:     product.Title,
		Code:      product.Code,
		Image:     product.Image,
		Size:      size,
		UnitPrice: unitPrice,
	}
}

// LineItemInput é o payload de entrada de um item na submissão de venda.
// O serviço converte este formato achatado (vindo do cliente) para o
// SaleItem discriminado antes de persistir.
type LineItemInput struct {
	IsManual    bool    `json:"is_manual"`
	ProductID   string  `json:"product_id,omitempty"`
	Size        string  `json:"size,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	ManualTitle string  `json:"manual_title,omitempty"`
	ManualCode  string  `json:"manual_code,omitempty"`
}

// SaleSubmission é o payload de entrada para o registro de uma venda completa.
type SaleSubmission struct {
	Items         []LineItemInput `json:"items"`
	TotalAmount   float64         `json:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
}

// SaleService define o contrato de lógica de negócio do Coordenador de Vendas.
type SaleService interface {
	CommitSale(ctx Context, submission SaleSubmission, submittedBy string) (Sale, error)
	GetSaleByID(ctx Context, id string) (Sale, error)
	ListSales(ctx Context, filter SaleFilter) ([]Sale, error)
	ReplaceSaleItems(ctx Context, saleID string, submission SaleSubmission) (Sale, error)
	DeleteSale(ctx Context, id string) error
}

// SaleFilter define os parâmetros de busca e paginação do ledger de vendas.
type SaleFilter struct {
	Page  int
	Limit int
}
