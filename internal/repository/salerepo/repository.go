package salerepo

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

// StockEngine define o contrato que o Coordenador de Vendas espera do
// Stock Adjustment Engine: o decremento executa DENTRO da transação da venda.
type StockEngine interface {
	SellInTx(ctx context.Context, tx *sql.Tx, productID, size string, quantity int) error
}

// SaleRepository implementa a persistência do Ledger de Vendas.
// CreateSale é a única operação que grava venda + itens + efeitos de estoque,
// tudo em uma transação: ou tudo é commitado junto, ou nada é.
type SaleRepository struct {
	DB        *sql.DB
	Stock     StockEngine
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewSaleRepository cria e retorna uma nova instância do Repositório de Vendas.
func NewSaleRepository(db *sql.DB, stock StockEngine, cacheClient cache.Client, dbTimeout time.Duration, logger logger.Logger) *SaleRepository {
	return &SaleRepository{
		DB:        db,
		Stock:     stock,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const insertItemSQL = `
    INSERT INTO sale_items (id, sale_id, position, kind, product_id, size, quantity,
                            unit_price, discount, final_price,
                            snap_title, snap_code, snap_image, snap_size, snap_unit_price)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

// CreateSale registra a venda completa em uma única transação atômica:
//
//  1. Insere o cabeçalho (para obter o identificador da venda).
//  2. Itera os itens na ordem de submissão do cliente:
//     - item manual: grava sem vínculo de catálogo, sem efeito de estoque;
//     - item de catálogo: resolve o produto (aborta com ProductNotFoundError),
//       congela o snapshot do estado atual e, se houver tamanho, decrementa o
//       estoque via Stock Engine (aborta com InsufficientStockError).
//  3. Commita. Qualquer falha no meio desfaz TUDO, inclusive decrementos de
//     itens anteriores individualmente válidos.
//
// Retorna a venda relida do banco após o commit.
func (r *SaleRepository) CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao iniciar transação de venda", err)
	}
	defer tx.Rollback()

	// 1. Cabeçalho primeiro: os itens precisam do ID gerado da venda.
	sale.ID = uuid.NewString()
	sale.CreatedAt = time.Now().UTC()

	const insertSaleSQL = `
        INSERT INTO sales (id, total_amount, payment_method, notes, submitted_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err = tx.ExecContext(ctxTimeout, insertSaleSQL,
		sale.ID,
		sale.TotalAmount,
		string(sale.PaymentMethod),
		sale.Notes,
		sale.SubmittedBy,
		sale.CreatedAt,
	)
	if err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao inserir cabeçalho da venda", err)
	}

	// 2. Itens na ordem de submissão.
	touchedProducts := make(map[string]struct{})
	for i := range sale.Items {
		item := &sale.Items[i]
		item.ID = uuid.NewString()
		item.SaleID = sale.ID
		item.Position = i

		if item.Kind == domain.LineKindCatalog {
			if err := r.resolveCatalogItem(ctxTimeout, tx, item, true); err != nil {
				return domain.Sale{}, err
			}
			touchedProducts[item.Catalog.ProductID] = struct{}{}
		}

		if err := r.insertItem(ctxTimeout, tx, *item); err != nil {
			return domain.Sale{}, err
		}
	}

	// 3. Tudo ou nada.
	if err := tx.Commit(); err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao commitar transação de venda", err)
	}

	for productID := range touchedProducts {
		r.invalidateProduct(ctxTimeout, productID)
	}

	r.logger.Info("Venda registrada com sucesso.", map[string]interface{}{
		"sale_id":      sale.ID,
		"items":        len(sale.Items),
		"total_amount": sale.TotalAmount,
	})

	// Releitura pós-commit: retorna a venda totalmente formada.
	created, err := r.FindByID(ctx, sale.ID)
	if err != nil {
		// A venda e os decrementos já estão duráveis; uma falha de releitura
		// não pode ser reportada ao chamador como venda falhada.
		r.logger.Warn("Venda commitada, mas a releitura falhou; retornando o estado em memória.", map[string]interface{}{"sale_id": sale.ID})
		return sale, nil
	}
	return created, nil
}

// resolveCatalogItem resolve o produto do item dentro da transação, congela o
// snapshot a partir do estado atual e, quando adjustStock é verdadeiro e o item
// carrega tamanho, decrementa o estoque sob o mesmo bloqueio transacional.
func (r *SaleRepository) resolveCatalogItem(ctx context.Context, tx *sql.Tx, item *domain.SaleItem, adjustStock bool) error {
	const productSQL = `
        SELECT id, title, code, price, image
        FROM products
        WHERE id = $1`

	var product domain.Product
	err := tx.QueryRowContext(ctx, productSQL, item.Catalog.ProductID).Scan(
		&product.ID, &product.Title, &product.Code, &product.Price, &product.Image,
	)
	if err == sql.ErrNoRows {
		return apperror.NewProductNotFoundError(item.Catalog.ProductID)
	}
	if err != nil {
		return apperror.NewDBError("Falha ao resolver produto da venda", err)
	}

	if adjustStock && item.Catalog.Size != "" {
		if err := r.Stock.SellInTx(ctx, tx, item.Catalog.ProductID, item.Catalog.Size, item.Quantity); err != nil {
			return err
		}
	}

	// Passo explícito de congelamento: o histórico nunca consulta o catálogo.
	item.Snapshot = domain.FreezeSnapshot(product, item.Catalog.Size, item.UnitPrice)
	return nil
}

// insertItem grava uma linha de venda com seu snapshot congelado.
func (r *SaleRepository) insertItem(ctx context.Context, tx *sql.Tx, item domain.SaleItem) error {
	var productID interface{}
	var size string
	if item.Kind == domain.LineKindCatalog {
		productID = item.Catalog.ProductID
		size = item.Catalog.Size
	}

	_, err := tx.ExecContext(ctx, insertItemSQL,
		item.ID,
		item.SaleID,
		item.Position,
		string(item.Kind),
		productID,
		size,
		item.Quantity,
		item.UnitPrice,
		item.Discount,
		item.FinalPrice,
		item.Snapshot.Title,
		item.Snapshot.Code,
		item.Snapshot.Image,
		item.Snapshot.Size,
		item.Snapshot.UnitPrice,
	)
	if err != nil {
		return apperror.NewDBError("Falha ao inserir item da venda", err)
	}
	return nil
}

// FindByID busca uma venda pelo ID, com os itens na ordem de submissão.
func (r *SaleRepository) FindByID(ctx context.Context, id string) (domain.Sale, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const saleSQL = `
        SELECT id, total_amount, payment_method, notes, submitted_by, created_at
        FROM sales
        WHERE id = $1`

	var sale domain.Sale
	var payment string
	err := r.DB.QueryRowContext(ctxTimeout, saleSQL, id).Scan(
		&sale.ID, &sale.TotalAmount, &payment, &sale.Notes, &sale.SubmittedBy, &sale.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Sale{}, apperror.NewNotFoundError(fmt.Sprintf("Venda %s não encontrada.", id))
	}
	if err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao buscar venda", err)
	}
	sale.PaymentMethod = domain.PaymentMethod(payment)

	sale.Items, err = r.loadItems(ctxTimeout, sale.ID)
	if err != nil {
		return domain.Sale{}, err
	}

	return sale, nil
}

// FindAll lista vendas do ledger, mais recentes primeiro, com paginação.
func (r *SaleRepository) FindAll(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	const listSQL = `
        SELECT id, total_amount, payment_method, notes, submitted_by, created_at
        FROM sales
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctxTimeout, listSQL, limit, offset)
	if err != nil {
		return nil, apperror.NewDBError("Falha ao listar vendas", err)
	}
	defer rows.Close()

	sales := []domain.Sale{}
	for rows.Next() {
		var s domain.Sale
		var payment string
		if err := rows.Scan(&s.ID, &s.TotalAmount, &payment, &s.Notes, &s.SubmittedBy, &s.CreatedAt); err != nil {
			return nil, apperror.NewDBError("Falha ao ler linha de venda", err)
		}
		s.PaymentMethod = domain.PaymentMethod(payment)
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar vendas", err)
	}

	for i := range sales {
		sales[i].Items, err = r.loadItems(ctxTimeout, sales[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return sales, nil
}

// ReplaceItems substitui o conjunto de itens de uma venda existente (edição
// administrativa) e atualiza o total. Snapshots de itens de catálogo são
// recongelados do estado atual do produto. Estoque NÃO é ajustado: correções
// de inventário pós-venda são manuais, via ajuste de estoque.
func (r *SaleRepository) ReplaceItems(ctx context.Context, saleID string, items []domain.SaleItem, totalAmount float64) (domain.Sale, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctxTimeout, `SELECT id FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&existingID)
	if err == sql.ErrNoRows {
		return domain.Sale{}, apperror.NewNotFoundError(fmt.Sprintf("Venda %s não encontrada.", saleID))
	}
	if err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao bloquear venda", err)
	}

	if _, err := tx.ExecContext(ctxTimeout, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao remover itens da venda", err)
	}

	for i := range items {
		item := &items[i]
		item.ID = uuid.NewString()
		item.SaleID = saleID
		item.Position = i

		if item.Kind == domain.LineKindCatalog {
			if err := r.resolveCatalogItem(ctxTimeout, tx, item, false); err != nil {
				return domain.Sale{}, err
			}
		}

		if err := r.insertItem(ctxTimeout, tx, *item); err != nil {
			return domain.Sale{}, err
		}
	}

	if _, err := tx.ExecContext(ctxTimeout, `UPDATE sales SET total_amount = $1 WHERE id = $2`, totalAmount, saleID); err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao atualizar total da venda", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Sale{}, apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.logger.Info("Itens da venda substituídos.", map[string]interface{}{"sale_id": saleID, "items": len(items)})
	return r.FindByID(ctx, saleID)
}

// Delete remove uma venda e seus itens. O estoque NÃO é restaurado:
// a correção de inventário após exclusão é decisão manual do administrador,
// para evitar contagem dupla com ajustes já feitos.
func (r *SaleRepository) Delete(ctx context.Context, id string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctxTimeout, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return apperror.NewDBError("Falha ao remover itens da venda", err)
	}

	result, err := tx.ExecContext(ctxTimeout, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return apperror.NewDBError("Falha ao remover venda", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return apperror.NewNotFoundError(fmt.Sprintf("Venda %s não encontrada.", id))
	}

	if err := tx.Commit(); err != nil {
		return apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.logger.Info("Venda removida do ledger.", map[string]interface{}{"sale_id": id})
	return nil
}

// loadItems carrega os itens de uma venda na ordem de submissão, reconstruindo
// o payload discriminado (catálogo ou manual) a partir das colunas.
func (r *SaleRepository) loadItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	const itemsSQL = `
        SELECT id, sale_id, position, kind, COALESCE(product_id::text, ''), size, quantity,
               unit_price, discount, final_price,
               snap_title, snap_code, snap_image, snap_size, snap_unit_price
        FROM sale_items
        WHERE sale_id = $1
        ORDER BY position`

	rows, err := r.DB.QueryContext(ctx, itemsSQL, saleID)
	if err != nil {
		return nil, apperror.NewDBError("Falha ao buscar itens da venda", err)
	}
	defer rows.Close()

	items := []domain.SaleItem{}
	for rows.Next() {
		var item domain.SaleItem
		var kind, productID, size string
		if err := rows.Scan(
			&item.ID, &item.SaleID, &item.Position, &kind, &productID, &size, &item.Quantity,
			&item.UnitPrice, &item.Discount, &item.FinalPrice,
			&item.Snapshot.Title, &item.Snapshot.Code, &item.Snapshot.Image,
			&item.Snapshot.Size, &item.Snapshot.UnitPrice,
		); err != nil {
			return nil, apperror.NewDBError("Falha ao ler item da venda", err)
		}

		item.Kind = domain.LineKind(kind)
		switch item.Kind {
		case domain.LineKindCatalog:
			item.Catalog = &domain.CatalogLine{ProductID: productID, Size: size}
		case domain.LineKindManual:
			item.Manual = &domain.ManualLine{Title: item.Snapshot.Title, Code: item.Snapshot.Code}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar itens da venda", err)
	}

	return items, nil
}

// invalidateProduct remove o produto do cache após o commit da venda.
func (r *SaleRepository) invalidateProduct(ctx context.Context, productID string) {
	key := fmt.Sprintf(productCacheKey, productID)
	if err := r.Cache.Delete(ctx, key); err != nil {
		r.logger.Warn("Falha ao invalidar cache do produto após venda.", map[string]interface{}{"product_id": productID})
	}
}
