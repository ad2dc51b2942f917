package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/cache"
	"gopos/internal/pkg/logger"
)

// Chave e TTL de cache para produtos (estratégia Cache-Aside).
const (
	productCacheKey = "product:%s"
	productCacheTTL = 10 * time.Minute
)

// ProductRepository implementa a interface domain.ProductRepository.
// Ela contém as conexões necessárias para acessar dados do catálogo.
type ProductRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewProductRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration, logger logger.Logger) *ProductRepository {
	return &ProductRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// Save persiste um novo Produto e seus tamanhos no banco de dados,
// em uma única transação.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Product{}, apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	const productSQL = `
        INSERT INTO products (id, title, code, price, image, category_id, manufacturer_id, is_visible, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = tx.ExecContext(ctxTimeout, productSQL,
		product.ID,
		product.Title,
		product.Code,
		product.Price,
		product.Image,
		nullable(product.CategoryID),
		nullable(product.ManufacturerID),
		product.IsVisible,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, apperror.NewDBError("Falha ao inserir produto", err)
	}

	const sizeSQL = `
        INSERT INTO product_sizes (id, product_id, size, stock, position)
        VALUES ($1,$2,$3,$4,$5)`

	for i := range product.Sizes {
		s := &product.Sizes[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.ProductID = product.ID
		s.Position = i
		if s.Stock < 0 {
			s.Stock = 0
		}
		_, err = tx.ExecContext(ctxTimeout, sizeSQL, s.ID, s.ProductID, s.Size, s.Stock, s.Position)
		if err != nil {
			return domain.Product{}, apperror.NewDBError("Falha ao inserir tamanho do produto", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Product{}, apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.logger.Info("Produto salvo no catálogo.", map[string]interface{}{"product_id": product.ID, "code": product.Code})
	return product, nil
}

// FindByID busca um produto pelo seu identificador externo estável,
// utilizando a estratégia Cache-Aside. Inclui os tamanhos em ordem.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(productCacheKey, id)
	var product domain.Product

	// 1. Tentar obter do Cache (Redis)
	cachedData, err := r.Cache.Get(ctxTimeout, key)
	if err == nil {
		// Cache HIT
		if json.Unmarshal([]byte(cachedData), &product) == nil {
			return product, nil
		}
		// Se a desserialização falhar, continua para o DB
	} else if err != cache.ErrCacheMiss {
		// Erro real de cache (ex: conexão perdida): logamos e seguimos para o DB.
		r.logger.Warn("Falha ao ler produto do cache.", map[string]interface{}{"product_id": id})
	}

	// 2. Busca no Banco de Dados (PostgreSQL)
	const productSQL = `
        SELECT id, title, code, price, image, COALESCE(category_id::text, ''), COALESCE(manufacturer_id::text, ''), is_visible, created_at, updated_at
        FROM products
        WHERE id = $1`

	row := r.DB.QueryRowContext(ctxTimeout, productSQL, id)
	err = row.Scan(
		&product.ID,
		&product.Title,
		&product.Code,
		&product.Price,
		&product.Image,
		&product.CategoryID,
		&product.ManufacturerID,
		&product.IsVisible,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Product{}, apperror.NewProductNotFoundError(id)
	}
	if err != nil {
		return domain.Product{}, apperror.NewDBError("Falha ao buscar produto", err)
	}

	product.Sizes, err = r.loadSizes(ctxTimeout, product.ID)
	if err != nil {
		return domain.Product{}, err
	}

	// 3. Popular o cache para leituras futuras
	if data, marshalErr := json.Marshal(product); marshalErr == nil {
		if cacheErr := r.Cache.Set(ctxTimeout, key, string(data), productCacheTTL); cacheErr != nil {
			r.logger.Warn("Falha ao gravar produto no cache.", map[string]interface{}{"product_id": id})
		}
	}

	return product, nil
}

// FindAll lista produtos do catálogo com filtros e paginação.
func (r *ProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
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
        SELECT id, title, code, price, image, COALESCE(category_id::text, ''), COALESCE(manufacturer_id::text, ''), is_visible, created_at, updated_at
        FROM products
        WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')
          AND ($2 = '' OR code = $2)
          AND (NOT $3 OR is_visible)
        ORDER BY title
        LIMIT $4 OFFSET $5`

	rows, err := r.DB.QueryContext(ctxTimeout, listSQL, filter.Title, filter.Code, filter.VisibleOnly, limit, offset)
	if err != nil {
		return nil, apperror.NewDBError("Falha ao listar produtos", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Code, &p.Price, &p.Image,
			&p.CategoryID, &p.ManufacturerID, &p.IsVisible, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, apperror.NewDBError("Falha ao ler linha de produto", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar produtos", err)
	}

	for i := range products {
		products[i].Sizes, err = r.loadSizes(ctxTimeout, products[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return products, nil
}

// Update altera apenas os metadados do produto (título, código, preço, imagem,
// referências e visibilidade). Estoque NÃO é alterado por aqui: toda mutação
// de estoque passa pelo Stock Adjustment Engine (stockrepo).
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const updateSQL = `
        UPDATE products
        SET title = $1, code = $2, price = $3, image = $4,
            category_id = $5, manufacturer_id = $6, is_visible = $7, updated_at = $8
        WHERE id = $9`

	result, err := r.DB.ExecContext(ctxTimeout, updateSQL,
		product.Title,
		product.Code,
		product.Price,
		product.Image,
		nullable(product.CategoryID),
		nullable(product.ManufacturerID),
		product.IsVisible,
		time.Now().UTC(),
		product.ID,
	)
	if err != nil {
		return apperror.NewDBError("Falha ao atualizar produto", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return apperror.NewProductNotFoundError(product.ID)
	}

	// Invalidação do cache: a próxima leitura volta ao DB.
	key := fmt.Sprintf(productCacheKey, product.ID)
	if err := r.Cache.Delete(ctxTimeout, key); err != nil {
		r.logger.Warn("Falha ao invalidar cache do produto.", map[string]interface{}{"product_id": product.ID})
	}

	return nil
}

// loadSizes carrega a coleção ordenada de tamanhos de um produto.
func (r *ProductRepository) loadSizes(ctx context.Context, productID string) ([]domain.SizeStock, error) {
	const sizesSQL = `
        SELECT id, product_id, size, stock, position
        FROM product_sizes
        WHERE product_id = $1
        ORDER BY position`

	rows, err := r.DB.QueryContext(ctx, sizesSQL, productID)
	if err != nil {
		return nil, apperror.NewDBError("Falha ao buscar tamanhos do produto", err)
	}
	defer rows.Close()

	sizes := []domain.SizeStock{}
	for rows.Next() {
		var s domain.SizeStock
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Size, &s.Stock, &s.Position); err != nil {
			return nil, apperror.NewDBError("Falha ao ler tamanho do produto", err)
		}
		sizes = append(sizes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar tamanhos", err)
	}
	return sizes, nil
}

// nullable converte string vazia em NULL para colunas de referência opcionais.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
