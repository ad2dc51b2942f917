package salerepo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/logger"
	"gopos/internal/repository/salerepo"
	"gopos/internal/repository/stockrepo"
)

// MockCacheClient é uma implementação mock da interface cache.Client
type MockCacheClient struct {
	mock.Mock
}

func (m *MockCacheClient) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheClient) GetInt(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockCacheClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheClient) Incr(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheClient) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// newSaleRepo monta o coordenador de vendas sobre um driver SQL simulado,
// com o motor de ajuste de estoque REAL operando na mesma transação.
func newSaleRepo(t *testing.T) (*salerepo.SaleRepository, sqlmock.Sqlmock, *MockCacheClient) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewLogger("error")
	mockCache := new(MockCacheClient)
	stockRepo := stockrepo.NewStockRepository(db, mockCache, 5*time.Second, log)
	repo := salerepo.NewSaleRepository(db, stockRepo, mockCache, 5*time.Second, log)
	return repo, dbMock, mockCache
}

func catalogItem(productID, size string, quantity int, unitPrice float64) domain.SaleItem {
	return domain.SaleItem{
		Kind:       domain.LineKindCatalog,
		Catalog:    &domain.CatalogLine{ProductID: productID, Size: size},
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		FinalPrice: unitPrice * float64(quantity),
	}
}

// TestCreateSale_CommitsHeaderItemsAndStockTogether testa o caminho feliz da
// transação: cabeçalho, resolução do produto, decremento sob bloqueio, snapshot
// congelado e item gravados, tudo commitado junto, com releitura ao final.
func TestCreateSale_CommitsHeaderItemsAndStockTogether(t *testing.T) {
	repo, dbMock, mockCache := newSaleRepo(t)

	productID := uuid.New().String()
	sizeID := uuid.New().String()
	submittedBy := uuid.New().String()

	sale := domain.Sale{
		TotalAmount:   150.00,
		PaymentMethod: domain.PaymentCash,
		SubmittedBy:   submittedBy,
		Items:         []domain.SaleItem{catalogItem(productID, "M", 3, 50.00)},
	}

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO sales").
		WithArgs(sqlmock.AnyArg(), 150.00, "cash", "", submittedBy, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectQuery("SELECT id, title, code, price, image FROM products").
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "code", "price", "image"}).
			AddRow(productID, "Camiseta Básica", "CAM-001", 50.00, "camiseta.jpg"))
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "M").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(sizeID, 5))
	dbMock.ExpectExec("UPDATE product_sizes SET stock = stock -").
		WithArgs(3, sizeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO sale_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0, "catalog", productID, "M", 3,
			50.00, 0.00, 150.00,
			"Camiseta Básica", "CAM-001", "camiseta.jpg", "M", 50.00).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	// Releitura pós-commit.
	createdAt := time.Now().UTC()
	dbMock.ExpectQuery("SELECT id, total_amount, payment_method, notes, submitted_by, created_at FROM sales").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_amount", "payment_method", "notes", "submitted_by", "created_at"}).
			AddRow("sale-1", 150.00, "cash", "", submittedBy, createdAt))
	dbMock.ExpectQuery("SELECT id, sale_id, position, kind").
		WithArgs("sale-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "sale_id", "position", "kind", "product_id", "size", "quantity",
			"unit_price", "discount", "final_price",
			"snap_title", "snap_code", "snap_image", "snap_size", "snap_unit_price"}).
			AddRow("item-1", "sale-1", 0, "catalog", productID, "M", 3,
				50.00, 0.00, 150.00,
				"Camiseta Básica", "CAM-001", "camiseta.jpg", "M", 50.00))

	mockCache.On("Delete", mock.Anything, "product:"+productID).Return(nil)

	created, err := repo.CreateSale(context.Background(), sale)

	assert.NoError(t, err)
	assert.Equal(t, "sale-1", created.ID)
	assert.Len(t, created.Items, 1)
	assert.Equal(t, domain.LineKindCatalog, created.Items[0].Kind)
	// Snapshot congelado no momento da venda.
	assert.Equal(t, "Camiseta Básica", created.Items[0].Snapshot.Title)
	assert.Equal(t, 50.00, created.Items[0].Snapshot.UnitPrice)

	assert.NoError(t, dbMock.ExpectationsWereMet())
	mockCache.AssertExpectations(t)
}

// TestCreateSale_RollsBackEverythingOnInsufficientStock testa o tudo-ou-nada:
// o primeiro item decrementa com sucesso, o segundo esbarra em estoque
// insuficiente e a transação INTEIRA é desfeita, inclusive o decremento do
// item anterior individualmente válido.
func TestCreateSale_RollsBackEverythingOnInsufficientStock(t *testing.T) {
	repo, dbMock, _ := newSaleRepo(t)

	productID := uuid.New().String()
	sizeID := uuid.New().String()
	submittedBy := uuid.New().String()

	sale := domain.Sale{
		TotalAmount:   300.00,
		PaymentMethod: domain.PaymentCard,
		SubmittedBy:   submittedBy,
		Items: []domain.SaleItem{
			catalogItem(productID, "M", 3, 50.00),
			catalogItem(productID, "M", 3, 50.00),
		},
	}

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO sales").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Item 1: estoque 5, decrementa para 2.
	dbMock.ExpectQuery("SELECT id, title, code, price, image FROM products").
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "code", "price", "image"}).
			AddRow(productID, "Camiseta Básica", "CAM-001", 50.00, ""))
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "M").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(sizeID, 5))
	dbMock.ExpectExec("UPDATE product_sizes SET stock = stock -").
		WithArgs(3, sizeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO sale_items").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Item 2: restam 2, pedido de 3 é falha dura.
	dbMock.ExpectQuery("SELECT id, title, code, price, image FROM products").
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "code", "price", "image"}).
			AddRow(productID, "Camiseta Básica", "CAM-001", 50.00, ""))
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "M").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(sizeID, 2))

	// Nada commitado: a transação inteira é desfeita.
	dbMock.ExpectRollback()

	_, err := repo.CreateSale(context.Background(), sale)

	assert.Error(t, err)
	var stockErr *apperror.InsufficientStockError
	assert.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestCreateSale_RollsBackOnProductNotFound testa que um produto inexistente
// aborta a venda inteira com erro tipado.
func TestCreateSale_RollsBackOnProductNotFound(t *testing.T) {
	repo, dbMock, _ := newSaleRepo(t)

	productID := uuid.New().String()

	sale := domain.Sale{
		TotalAmount:   50.00,
		PaymentMethod: domain.PaymentCash,
		SubmittedBy:   uuid.New().String(),
		Items:         []domain.SaleItem{catalogItem(productID, "M", 1, 50.00)},
	}

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO sales").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectQuery("SELECT id, title, code, price, image FROM products").
		WithArgs(productID).
		WillReturnError(sql.ErrNoRows)
	dbMock.ExpectRollback()

	_, err := repo.CreateSale(context.Background(), sale)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ProductNotFoundError{}, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestCreateSale_ReadBackFailureStillReturnsSale testa que uma falha na
// releitura pós-commit não é reportada como venda falhada: a venda já está
// durável e o estado em memória é devolvido ao chamador.
func TestCreateSale_ReadBackFailureStillReturnsSale(t *testing.T) {
	repo, dbMock, _ := newSaleRepo(t)

	submittedBy := uuid.New().String()
	sale := domain.Sale{
		TotalAmount:   15.00,
		PaymentMethod: domain.PaymentCash,
		SubmittedBy:   submittedBy,
		Items: []domain.SaleItem{
			{
				Kind:       domain.LineKindManual,
				Manual:     &domain.ManualLine{Title: "Ajuste de bainha"},
				Quantity:   1,
				UnitPrice:  15.00,
				FinalPrice: 15.00,
				Snapshot:   domain.ItemSnapshot{Title: "Ajuste de bainha", UnitPrice: 15.00},
			},
		},
	}

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO sales").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO sale_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	// A releitura falha, mas o commit já aconteceu.
	dbMock.ExpectQuery("SELECT id, total_amount, payment_method, notes, submitted_by, created_at FROM sales").
		WillReturnError(errors.New("conexão perdida"))

	created, err := repo.CreateSale(context.Background(), sale)

	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, submittedBy, created.SubmittedBy)
	assert.Len(t, created.Items, 1)
	assert.Equal(t, "Ajuste de bainha", created.Items[0].Snapshot.Title)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}
