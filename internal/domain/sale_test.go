package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gopos/internal/domain"
)

// TestFreezeSnapshot_CopiesCurrentState testa que o snapshot congela o estado
// atual do produto no momento da venda.
func TestFreezeSnapshot_CopiesCurrentState(t *testing.T) {
	product := domain.Product{
		ID:    "prod-1",
		Title: "Vestido Floral",
		Code:  "VES-010",
		Price: 199.90,
		Image: "vestido.jpg",
	}

	snapshot := domain.FreezeSnapshot(product, "M", 189.90)

	assert.Equal(t, "Vestido Floral", snapshot.Title)
	assert.Equal(t, "VES-010", snapshot.Code)
	assert.Equal(t, "vestido.jpg", snapshot.Image)
	assert.Equal(t, "M", snapshot.Size)
	// O preço congelado é o praticado na venda, não o de tabela do catálogo.
	assert.Equal(t, 189.90, snapshot.UnitPrice)
}

// TestFreezeSnapshot_ImmuneToCatalogEdits testa que edições posteriores do
// catálogo não alteram um snapshot já congelado.
func TestFreezeSnapshot_ImmuneToCatalogEdits(t *testing.T) {
	product := domain.Product{
		ID:    "prod-1",
		Title: "Vestido Floral",
		Code:  "VES-010",
		Price: 199.90,
	}

	snapshot := domain.FreezeSnapshot(product, "M", 199.90)

	// Edição do catálogo após a venda.
	product.Title = "Vestido Floral (Nova Coleção)"
	product.Price = 249.90

	assert.Equal(t, "Vestido Floral", snapshot.Title)
	assert.Equal(t, 199.90, snapshot.UnitPrice)
}

// TestTotalStock testa a soma do estoque de todos os tamanhos.
func TestTotalStock(t *testing.T) {
	product := domain.Product{
		Sizes: []domain.SizeStock{
			{Size: "P", Stock: 3},
			{Size: "M", Stock: 7},
			{Size: "G", Stock: 0},
		},
	}

	assert.Equal(t, 10, product.TotalStock())

	// Produto sem grade de tamanhos não controla estoque.
	assert.Equal(t, 0, domain.Product{}.TotalStock())
}

// TestFindSize testa a localização de um tamanho pelo rótulo.
func TestFindSize(t *testing.T) {
	product := domain.Product{
		Sizes: []domain.SizeStock{
			{Size: "38", Stock: 2},
			{Size: "40", Stock: 5},
		},
	}

	size, found := product.FindSize("40")
	assert.True(t, found)
	assert.Equal(t, 5, size.Stock)

	_, found = product.FindSize("44")
	assert.False(t, found)
}

// TestPaymentMethod_IsValid testa as formas de pagamento aceitas.
func TestPaymentMethod_IsValid(t *testing.T) {
	assert.True(t, domain.PaymentCash.IsValid())
	assert.True(t, domain.PaymentCard.IsValid())
	assert.False(t, domain.PaymentMethod("pix").IsValid())
	assert.False(t, domain.PaymentMethod("").IsValid())
}
