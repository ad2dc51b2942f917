package productservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/logger"
)

// ProductRepository define o contrato (interface) que este Serviço espera
// da camada de Persistência (DB, Cache).
type ProductRepository interface {
	Save(ctx context.Context, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, id string) (domain.Product, error)
	FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, product domain.Product) error
}

// Service é o Catalog Lookup Service: resolve produtos e estoques por tamanho
// para o restante da aplicação. Nunca altera estoque (isso é papel exclusivo
// do Stock Adjustment Engine).
type Service struct {
	repo   ProductRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Catálogo.
func NewService(repo ProductRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateProduct cadastra um novo produto com sua grade de tamanhos.
func (s *Service) CreateProduct(ctx domain.Context, product domain.Product) (domain.Product, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	// Validação de Regras de Negócio
	if product.Title == "" || product.Code == "" {
		return domain.Product{}, apperror.NewValidationError("Título e código são obrigatórios para o produto.")
	}
	if product.Price < 0 {
		return domain.Product{}, apperror.NewValidationError("O preço do produto não pode ser negativo.")
	}
	for i, size := range product.Sizes {
		if size.Size == "" {
			return domain.Product{}, apperror.NewValidationError(fmt.Sprintf("Tamanho %d requer rótulo.", i+1))
		}
	}

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	created, err := s.repo.Save(ctxGo, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("falha ao salvar produto no repositório: %w", err)
	}

	return created, nil
}

// GetProductByID resolve um produto pelo seu identificador externo estável.
// Retorna ProductNotFoundError quando o produto não existe mais.
func (s *Service) GetProductByID(ctx domain.Context, id string) (domain.Product, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if id == "" {
		return domain.Product{}, apperror.NewValidationError("ID do produto é obrigatório.")
	}

	return s.repo.FindByID(ctxGo, id)
}

// GetSizeStock resolve o estoque atual de um tamanho específico de um produto.
// É a capacidade findSizeStock consumida pelo restante da aplicação.
func (s *Service) GetSizeStock(ctx domain.Context, productID, size string) (domain.SizeStock, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if productID == "" || size == "" {
		return domain.SizeStock{}, apperror.NewValidationError("ID do produto e tamanho são obrigatórios.")
	}

	product, err := s.repo.FindByID(ctxGo, productID)
	if err != nil {
		return domain.SizeStock{}, err
	}

	sizeStock, found := product.FindSize(size)
	if !found {
		return domain.SizeStock{}, apperror.NewNotFoundError(
			fmt.Sprintf("Tamanho '%s' não definido para o produto %s.", size, productID))
	}

	return sizeStock, nil
}

// ListProducts lista produtos do catálogo com filtros e paginação.
func (s *Service) ListProducts(ctx domain.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	return s.repo.FindAll(ctxGo, filter)
}

// UpdateProduct altera os metadados de um produto. Estoque não é alterado por
// aqui; snapshots de vendas já registradas permanecem intactos por construção.
func (s *Service) UpdateProduct(ctx domain.Context, product domain.Product) error {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if product.ID == "" {
		return apperror.NewValidationError("ID do produto é obrigatório.")
	}
	if product.Title == "" || product.Code == "" {
		return apperror.NewValidationError("Título e código são obrigatórios para o produto.")
	}
	if product.Price < 0 {
		return apperror.NewValidationError("O preço do produto não pode ser negativo.")
	}

	return s.repo.Update(ctxGo, product)
}
