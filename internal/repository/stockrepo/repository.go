package stockrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/cache"
	"gopos/internal/pkg/logger"
)

const productCacheKey = "product:%s"

// StockRepository é o Stock Adjustment Engine: toda mutação de estoque do
// catálogo passa por aqui, sempre dentro de uma transação com bloqueio de
// linha (SELECT ... FOR UPDATE), nunca como update avulso em outra camada.
type StockRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewStockRepository cria e retorna uma nova instância do Repositório de Estoque.
func NewStockRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration, logger logger.Logger) *StockRepository {
	return &StockRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// SellInTx decrementa o estoque de um tamanho DENTRO da transação do chamador
// (o commit de venda). A leitura do estoque atual e o decremento acontecem sob
// o mesmo FOR UPDATE, serializando vendedores concorrentes do mesmo tamanho.
//
// Política: estoque insuficiente é falha dura (InsufficientStockError) e o
// chamador deve abortar a transação inteira. Não há clamp silencioso para zero.
// Um produto sem nenhum tamanho definido não controla estoque e nunca bloqueia
// a venda.
func (r *StockRepository) SellInTx(ctx context.Context, tx *sql.Tx, productID, size string, quantity int) error {
	if quantity <= 0 {
		return apperror.NewInvalidStockValueError(fmt.Sprintf("Quantidade vendida deve ser positiva (recebido %d).", quantity))
	}

	const selectSQL = `
        SELECT id, stock
        FROM product_sizes
        WHERE product_id = $1 AND size = $2
        FOR UPDATE`

	var sizeID string
	var stock int
	err := tx.QueryRowContext(ctx, selectSQL, productID, size).Scan(&sizeID, &stock)

	if err == sql.ErrNoRows {
		// O tamanho não existe. Se o produto não define tamanho algum, ele não
		// controla estoque (itens sem grade); caso contrário o tamanho pedido
		// não é resolvível e o ajuste é inválido.
		var sizeCount int
		countErr := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_sizes WHERE product_id = $1`, productID).Scan(&sizeCount)
		if countErr != nil {
			return apperror.NewDBError("Falha ao verificar tamanhos do produto", countErr)
		}
		if sizeCount == 0 {
			r.logger.Debug("Produto sem controle de estoque por tamanho; venda segue sem decremento.", map[string]interface{}{"product_id": productID})
			return nil
		}
		return apperror.NewInvalidStockValueError(fmt.Sprintf("Tamanho '%s' não definido para o produto %s.", size, productID))
	}
	if err != nil {
		return apperror.NewDBError("Falha ao buscar estoque para venda", err)
	}

	if stock < quantity {
		r.logger.Info("Venda rejeitada por estoque insuficiente.", map[string]interface{}{
			"product_id": productID,
			"size":       size,
			"available":  stock,
			"requested":  quantity,
		})
		return apperror.NewInsufficientStockError(productID, size, stock, quantity)
	}

	const updateSQL = `UPDATE product_sizes SET stock = stock - $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, updateSQL, quantity, sizeID); err != nil {
		return apperror.NewDBError("Falha ao decrementar estoque", err)
	}

	r.logger.Debug("Estoque decrementado dentro da transação de venda.", map[string]interface{}{
		"product_id": productID,
		"size":       size,
		"sold":       quantity,
		"remaining":  stock - quantity,
	})
	return nil
}

// Sell executa o modo de venda em transação própria (ajuste direto via API,
// fora de um commit de venda). Mesma política do SellInTx.
func (r *StockRepository) Sell(ctx context.Context, productID, size string, quantity int) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	// Fora do commit de venda ninguém resolveu o produto antes: valida aqui.
	if err := r.lockProduct(ctxTimeout, tx, productID); err != nil {
		return err
	}

	if err := r.SellInTx(ctxTimeout, tx, productID, size, quantity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.invalidateProduct(ctxTimeout, productID)
	return nil
}

// SetAbsolute substitui o estoque de um único tamanho por um valor absoluto,
// em transação própria. Valores negativos são clampados para zero. Se o
// tamanho ainda não existir para o produto, ele é criado ao final da grade.
func (r *StockRepository) SetAbsolute(ctx context.Context, productID, size string, newStock int) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if newStock < 0 {
		newStock = 0
	}

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	if err := r.lockProduct(ctxTimeout, tx, productID); err != nil {
		return err
	}

	const updateSQL = `
        UPDATE product_sizes SET stock = $1
        WHERE product_id = $2 AND size = $3`

	result, err := tx.ExecContext(ctxTimeout, updateSQL, newStock, productID, size)
	if err != nil {
		return apperror.NewDBError("Falha ao atualizar estoque", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.NewDBError("Falha ao verificar linhas afetadas", err)
	}

	if rowsAffected == 0 {
		const insertSQL = `
            INSERT INTO product_sizes (id, product_id, size, stock, position)
            VALUES ($1, $2, $3, $4,
                    (SELECT COALESCE(MAX(position) + 1, 0) FROM product_sizes WHERE product_id = $2))`
		if _, err := tx.ExecContext(ctxTimeout, insertSQL, uuid.NewString(), productID, size, newStock); err != nil {
			return apperror.NewDBError("Falha ao inserir novo tamanho", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.invalidateProduct(ctxTimeout, productID)
	r.logger.Info("Estoque definido por valor absoluto.", map[string]interface{}{
		"product_id": productID,
		"size":       size,
		"new_stock":  newStock,
	})
	return nil
}

// ReplaceAll substitui a grade completa de tamanhos do produto: apaga todas as
// linhas existentes e reinsere a lista informada, na ordem dada, com cada
// estoque clampado para >= 0. Idempotente: duas chamadas com a mesma lista
// produzem o mesmo estado final.
func (r *StockRepository) ReplaceAll(ctx context.Context, productID string, sizes []domain.SizeStockInput) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	if err := r.lockProduct(ctxTimeout, tx, productID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctxTimeout, `DELETE FROM product_sizes WHERE product_id = $1`, productID); err != nil {
		return apperror.NewDBError("Falha ao remover grade de tamanhos", err)
	}

	const insertSQL = `
        INSERT INTO product_sizes (id, product_id, size, stock, position)
        VALUES ($1, $2, $3, $4, $5)`

	for i, s := range sizes {
		stock := s.Stock
		if stock < 0 {
			stock = 0
		}
		if _, err := tx.ExecContext(ctxTimeout, insertSQL, uuid.NewString(), productID, s.Size, stock, i); err != nil {
			return apperror.NewDBError("Falha ao inserir tamanho na grade", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.invalidateProduct(ctxTimeout, productID)
	r.logger.Info("Grade de tamanhos substituída.", map[string]interface{}{
		"product_id": productID,
		"sizes":      len(sizes),
	})
	return nil
}

// lockProduct garante que o produto existe e segura sua linha durante o ajuste.
func (r *StockRepository) lockProduct(ctx context.Context, tx *sql.Tx, productID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	if err == sql.ErrNoRows {
		return apperror.NewProductNotFoundError(productID)
	}
	if err != nil {
		return apperror.NewDBError("Falha ao bloquear produto para ajuste", err)
	}
	return nil
}

// invalidateProduct remove o produto do cache após mutação de estoque.
func (r *StockRepository) invalidateProduct(ctx context.Context, productID string) {
	key := fmt.Sprintf(productCacheKey, productID)
	if err := r.Cache.Delete(ctx, key); err != nil {
		r.logger.Warn("Falha ao invalidar cache do produto após ajuste de estoque.", map[string]interface{}{"product_id": productID})
	}
}
