package stockservice

import (
	"context"
	"fmt"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/logger"
)

// StockEngine define o contrato que o Serviço de Estoque espera do
// Stock Adjustment Engine (camada de Persistência).
type StockEngine interface {
	Sell(ctx context.Context, productID, size string, quantity int) error
	SetAbsolute(ctx context.Context, productID, size string, newStock int) error
	ReplaceAll(ctx context.Context, productID string, sizes []domain.SizeStockInput) error
}

// ProductReader é a visão de leitura do catálogo usada para devolver o
// produto atualizado (com estoque total recalculado) após o ajuste.
type ProductReader interface {
	FindByID(ctx context.Context, id string) (domain.Product, error)
}

// Service implementa a interface domain.StockService.
type Service struct {
	engine   StockEngine
	products ProductReader
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Estoque.
func NewService(engine StockEngine, products ProductReader, logger logger.Logger) *Service {
	return &Service{engine: engine, products: products, logger: logger}
}

// AdjustStock aplica um ajuste de estoque a um produto, conforme o modo:
//
//   - sell:         decrementa um tamanho; estoque insuficiente é falha dura
//     (InsufficientStockError), nunca clamp silencioso para zero;
//   - set_absolute: define o estoque de um tamanho (negativos clampados a 0);
//   - replace_all:  substitui a grade completa de tamanhos.
//
// Retorna o produto relido após o ajuste, com o estoque total recalculável
// pela soma dos tamanhos.
func (s *Service) AdjustStock(ctx domain.Context, adjustment domain.StockAdjustmentRequest) (domain.Product, error) {
	s.logger.Debug("Iniciando ajuste de estoque no serviço.", map[string]interface{}{
		"mode":       string(adjustment.Mode),
		"product_id": adjustment.ProductID,
	})

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para AdjustStock", nil)
	}

	if adjustment.ProductID == "" {
		return domain.Product{}, apperror.NewValidationError("ID do produto é obrigatório no ajuste de estoque.")
	}

	var err error
	switch adjustment.Mode {
	case domain.AdjustmentSell:
		if adjustment.Size == "" {
			err = apperror.NewInvalidStockValueError("Modo sell requer o tamanho a ser vendido.")
			break
		}
		if adjustment.Quantity <= 0 {
			err = apperror.NewInvalidStockValueError(fmt.Sprintf("Quantidade vendida deve ser positiva (recebido %d).", adjustment.Quantity))
			break
		}
		err = s.engine.Sell(ctxGo, adjustment.ProductID, adjustment.Size, adjustment.Quantity)

	case domain.AdjustmentSetAbsolute:
		if adjustment.Size == "" {
			err = apperror.NewInvalidStockValueError("Modo set_absolute requer o tamanho a ser definido.")
			break
		}
		err = s.engine.SetAbsolute(ctxGo, adjustment.ProductID, adjustment.Size, adjustment.NewStock)

	case domain.AdjustmentReplaceAll:
		// A grade tem rótulos únicos; duplicatas violariam a restrição do banco
		// e virariam um 500 opaco em vez de uma rejeição clara.
		seen := make(map[string]struct{}, len(adjustment.Sizes))
		for _, s := range adjustment.Sizes {
			if s.Size == "" {
				err = apperror.NewInvalidStockValueError("Todo tamanho da grade requer rótulo.")
				break
			}
			if _, dup := seen[s.Size]; dup {
				err = apperror.NewInvalidStockValueError(fmt.Sprintf("Tamanho '%s' duplicado na grade.", s.Size))
				break
			}
			seen[s.Size] = struct{}{}
		}
		if err == nil {
			err = s.engine.ReplaceAll(ctxGo, adjustment.ProductID, adjustment.Sizes)
		}

	default:
		err = apperror.NewValidationError(fmt.Sprintf("Modo de ajuste desconhecido: '%s'.", adjustment.Mode))
	}

	if err != nil {
		s.logger.Error("Falha ao ajustar estoque.", err)
		return domain.Product{}, err
	}

	product, err := s.products.FindByID(ctxGo, adjustment.ProductID)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("Estoque ajustado com sucesso.", map[string]interface{}{
		"mode":        string(adjustment.Mode),
		"product_id":  product.ID,
		"total_stock": product.TotalStock(),
	})
	return product, nil
}
