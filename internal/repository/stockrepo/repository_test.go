package stockrepo_test

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

// newStockRepo monta o motor de ajuste sobre um driver SQL simulado.
func newStockRepo(t *testing.T) (*stockrepo.StockRepository, sqlmock.Sqlmock, *MockCacheClient) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mockCache := new(MockCacheClient)
	repo := stockrepo.NewStockRepository(db, mockCache, 5*time.Second, logger.NewLogger("error"))
	return repo, dbMock, mockCache
}

// TestSellInTx_DecrementsUnderLock testa que a leitura e o decremento do
// estoque acontecem sob o mesmo bloqueio de linha, na transação do chamador.
func TestSellInTx_DecrementsUnderLock(t *testing.T) {
	repo, dbMock, _ := newStockRepo(t)

	productID := uuid.New().String()
	sizeID := uuid.New().String()

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "M").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(sizeID, 5))
	dbMock.ExpectExec("UPDATE product_sizes SET stock = stock -").
		WithArgs(3, sizeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectRollback()

	db := repo.DB
	tx, err := db.Begin()
	assert.NoError(t, err)

	err = repo.SellInTx(context.Background(), tx, productID, "M", 3)
	assert.NoError(t, err)

	tx.Rollback()
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestSellInTx_SequentialSales_RejectsWhenStockRunsOut testa duas vendas
// seguidas do mesmo tamanho: com estoque 5, vender 3 funciona; vender mais 3
// com 2 restantes é falha dura, carregando disponível e solicitado. Nunca há
// clamp silencioso para zero.
func TestSellInTx_SequentialSales_RejectsWhenStockRunsOut(t *testing.T) {
	repo, dbMock, _ := newStockRepo(t)

	productID := uuid.New().String()
	sizeID := uuid.New().String()

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "M").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(sizeID, 5))
	dbMock.ExpectExec("UPDATE product_sizes SET stock = stock -").
		WithArgs(3, sizeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "M").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(sizeID, 2))
	dbMock.ExpectRollback()

	tx, err := repo.DB.Begin()
	assert.NoError(t, err)

	err = repo.SellInTx(context.Background(), tx, productID, "M", 3)
	assert.NoError(t, err)

	err = repo.SellInTx(context.Background(), tx, productID, "M", 3)
	assert.Error(t, err)

	var stockErr *apperror.InsufficientStockError
	assert.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, "M", stockErr.Size)

	tx.Rollback()
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestSellInTx_ProductWithoutSizes_DoesNotBlock testa que um produto sem grade
// de tamanhos não controla estoque e nunca bloqueia a venda.
func TestSellInTx_ProductWithoutSizes_DoesNotBlock(t *testing.T) {
	repo, dbMock, _ := newStockRepo(t)

	productID := uuid.New().String()

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "M").
		WillReturnError(sql.ErrNoRows)
	dbMock.ExpectQuery("SELECT COUNT").
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	dbMock.ExpectRollback()

	tx, err := repo.DB.Begin()
	assert.NoError(t, err)

	err = repo.SellInTx(context.Background(), tx, productID, "M", 1)
	assert.NoError(t, err) // Sem decremento e sem erro

	tx.Rollback()
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestSellInTx_Fail_UnknownSize testa tamanho não resolvível em produto que
// controla estoque por tamanho.
func TestSellInTx_Fail_UnknownSize(t *testing.T) {
	repo, dbMock, _ := newStockRepo(t)

	productID := uuid.New().String()

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT id, stock FROM product_sizes").
		WithArgs(productID, "XG").
		WillReturnError(sql.ErrNoRows)
	dbMock.ExpectQuery("SELECT COUNT").
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	dbMock.ExpectRollback()

	tx, err := repo.DB.Begin()
	assert.NoError(t, err)

	err = repo.SellInTx(context.Background(), tx, productID, "XG", 1)
	assert.Error(t, err)
	assert.IsType(t, &apperror.InvalidStockValueError{}, err)

	tx.Rollback()
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestSell_Fail_ProductNotFound testa a venda direta sobre produto inexistente:
// fora do commit de venda ninguém resolveu o produto antes, então o próprio
// motor valida e desfaz a transação.
func TestSell_Fail_ProductNotFound(t *testing.T) {
	repo, dbMock, _ := newStockRepo(t)

	productID := uuid.New().String()

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT id FROM products").
		WithArgs(productID).
		WillReturnError(sql.ErrNoRows)
	dbMock.ExpectRollback()

	err := repo.Sell(context.Background(), productID, "M", 1)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ProductNotFoundError{}, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestSetAbsolute_ClampsNegativeToZero testa que valores absolutos negativos
// são clampados para zero antes de tocar o banco.
func TestSetAbsolute_ClampsNegativeToZero(t *testing.T) {
	repo, dbMock, mockCache := newStockRepo(t)

	productID := uuid.New().String()

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT id FROM products").
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(productID))
	dbMock.ExpectExec("UPDATE product_sizes SET stock =").
		WithArgs(0, productID, "42").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	mockCache.On("Delete", mock.Anything, "product:"+productID).Return(nil)

	err := repo.SetAbsolute(context.Background(), productID, "42", -5)

	assert.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	mockCache.AssertExpectations(t)
}

// TestReplaceAll_Idempotent testa a substituição da grade: apaga tudo e
// reinsere a lista na ordem dada, com estoques clampados. Duas execuções com a
// mesma lista produzem exatamente a mesma sequência de efeitos.
func TestReplaceAll_Idempotent(t *testing.T) {
	repo, dbMock, mockCache := newStockRepo(t)

	productID := uuid.New().String()
	sizes := []domain.SizeStockInput{
		{Size: "P", Stock: 4},
		{Size: "M", Stock: -2}, // clampado para 0
	}

	for i := 0; i < 2; i++ {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id FROM products").
			WithArgs(productID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(productID))
		dbMock.ExpectExec("DELETE FROM product_sizes").
			WithArgs(productID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		dbMock.ExpectExec("INSERT INTO product_sizes").
			WithArgs(sqlmock.AnyArg(), productID, "P", 4, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("INSERT INTO product_sizes").
			WithArgs(sqlmock.AnyArg(), productID, "M", 0, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()
	}

	mockCache.On("Delete", mock.Anything, "product:"+productID).Return(nil)

	assert.NoError(t, repo.ReplaceAll(context.Background(), productID, sizes))
	assert.NoError(t, repo.ReplaceAll(context.Background(), productID, sizes))

	assert.NoError(t, dbMock.ExpectationsWereMet())
}
