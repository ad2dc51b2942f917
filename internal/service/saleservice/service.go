package saleservice

import (
	"context"
	"fmt"
	"math"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/logger"
)

// Tolerância para a conferência do total informado pelo caixa contra a soma
// dos preços finais dos itens (preços são float64 em toda a pilha).
const totalTolerance = 0.01

// SaleRepository define o contrato que o Coordenador de Vendas espera da
// camada de Persistência. CreateSale executa a transação atômica completa.
type SaleRepository interface {
	CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	FindByID(ctx context.Context, id string) (domain.Sale, error)
	FindAll(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	ReplaceItems(ctx context.Context, saleID string, items []domain.SaleItem, totalAmount float64) (domain.Sale, error)
	Delete(ctx context.Context, id string) error
}

// Service é o Sale Transaction Coordinator: valida a submissão, converte o
// payload achatado do cliente para itens discriminados e delega a gravação
// atômica ao repositório.
type Service struct {
	repo   SaleRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Coordenador de Vendas.
func NewService(repo SaleRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CommitSale registra uma venda completa. Pré-condições: itens não vazios,
// forma de pagamento válida, usuário submissor presente. O total informado é
// conferido contra a soma dos preços finais ANTES de tocar o banco: não se
// confia no total calculado no cliente.
//
// Pós-condição: ou todos os itens e seus efeitos de estoque são commitados
// juntos, ou nada é. Falhas chegam tipadas (ValidationError,
// ProductNotFoundError, InsufficientStockError); nunca uma venda pela metade.
func (s *Service) CommitSale(ctx domain.Context, submission domain.SaleSubmission, submittedBy string) (domain.Sale, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para CommitSale", nil)
	}

	if len(submission.Items) == 0 {
		return domain.Sale{}, apperror.NewValidationError("A venda deve conter ao menos um item.")
	}
	if !submission.PaymentMethod.IsValid() {
		return domain.Sale{}, apperror.NewValidationError(fmt.Sprintf("Forma de pagamento inválida: '%s'.", submission.PaymentMethod))
	}
	if submittedBy == "" {
		return domain.Sale{}, apperror.NewValidationError("Usuário submissor ausente.")
	}

	items, err := buildItems(submission.Items)
	if err != nil {
		return domain.Sale{}, err
	}

	// Conferência do total: validar, não confiar.
	sum := 0.0
	for _, item := range items {
		sum += item.FinalPrice
	}
	if math.Abs(sum-submission.TotalAmount) > totalTolerance {
		return domain.Sale{}, apperror.NewValidationError(
			fmt.Sprintf("Total informado (%.2f) não confere com a soma dos itens (%.2f).", submission.TotalAmount, sum))
	}

	sale := domain.Sale{
		TotalAmount:   submission.TotalAmount,
		PaymentMethod: submission.PaymentMethod,
		Notes:         submission.Notes,
		SubmittedBy:   submittedBy,
		Items:         items,
	}

	created, err := s.repo.CreateSale(ctxGo, sale)
	if err != nil {
		s.logger.Error("Falha ao registrar venda.", err)
		return domain.Sale{}, err
	}

	s.logger.Info("Venda commitada.", map[string]interface{}{
		"sale_id":      created.ID,
		"items":        len(created.Items),
		"submitted_by": submittedBy,
	})
	return created, nil
}

// GetSaleByID busca uma venda pelo ID (cabeçalho + itens ordenados).
func (s *Service) GetSaleByID(ctx domain.Context, id string) (domain.Sale, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if id == "" {
		return domain.Sale{}, apperror.NewValidationError("ID da venda é obrigatório.")
	}

	return s.repo.FindByID(ctxGo, id)
}

// ListSales lista vendas do ledger com paginação.
func (s *Service) ListSales(ctx domain.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	return s.repo.FindAll(ctxGo, filter)
}

// ReplaceSaleItems substitui o conjunto de itens de uma venda (operação
// administrativa). O total informado é conferido da mesma forma que no commit.
// Estoque não é ajustado (ver política em DeleteSale).
func (s *Service) ReplaceSaleItems(ctx domain.Context, saleID string, submission domain.SaleSubmission) (domain.Sale, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if saleID == "" {
		return domain.Sale{}, apperror.NewValidationError("ID da venda é obrigatório.")
	}
	if len(submission.Items) == 0 {
		return domain.Sale{}, apperror.NewValidationError("A venda deve conter ao menos um item.")
	}

	items, err := buildItems(submission.Items)
	if err != nil {
		return domain.Sale{}, err
	}

	sum := 0.0
	for _, item := range items {
		sum += item.FinalPrice
	}
	if math.Abs(sum-submission.TotalAmount) > totalTolerance {
		return domain.Sale{}, apperror.NewValidationError(
			fmt.Sprintf("Total informado (%.2f) não confere com a soma dos itens (%.2f).", submission.TotalAmount, sum))
	}

	return s.repo.ReplaceItems(ctxGo, saleID, items, submission.TotalAmount)
}

// DeleteSale remove uma venda do ledger (operação administrativa).
// O estoque NÃO é restaurado: restauração automática duplicaria correções
// manuais de inventário feitas após a venda.
func (s *Service) DeleteSale(ctx domain.Context, id string) error {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if id == "" {
		return apperror.NewValidationError("ID da venda é obrigatório.")
	}

	return s.repo.Delete(ctxGo, id)
}

// buildItems converte os payloads achatados do cliente para itens de venda
// discriminados (catálogo ou manual), validando cada linha e calculando o
// preço final. Itens manuais já recebem aqui seu snapshot (não há catálogo a
// congelar depois).
func buildItems(inputs []domain.LineItemInput) ([]domain.SaleItem, error) {
	items := make([]domain.SaleItem, 0, len(inputs))

	for i, input := range inputs {
		if input.Quantity <= 0 {
			return nil, apperror.NewValidationError(fmt.Sprintf("Item %d: quantidade deve ser positiva.", i+1))
		}
		if input.UnitPrice < 0 {
			return nil, apperror.NewValidationError(fmt.Sprintf("Item %d: preço unitário não pode ser negativo.", i+1))
		}
		if input.Discount < 0 {
			return nil, apperror.NewValidationError(fmt.Sprintf("Item %d: desconto não pode ser negativo.", i+1))
		}

		gross := input.UnitPrice * float64(input.Quantity)
		if input.Discount > gross {
			return nil, apperror.NewValidationError(
				fmt.Sprintf("Item %d: desconto (%.2f) excede o valor bruto (%.2f).", i+1, input.Discount, gross))
		}

		item := domain.SaleItem{
			Quantity:   input.Quantity,
			UnitPrice:  input.UnitPrice,
			Discount:   input.Discount,
			FinalPrice: gross - input.Discount,
		}

		if input.IsManual {
			if input.ManualTitle == "" {
				return nil, apperror.NewValidationError(fmt.Sprintf("Item %d: item manual requer título.", i+1))
			}
			item.Kind = domain.LineKindManual
			item.Manual = &domain.ManualLine{Title: input.ManualTitle, Code: input.ManualCode}
			item.Snapshot = domain.ItemSnapshot{
				Title:     input.ManualTitle,
				Code:      input.ManualCode,
				UnitPrice: input.UnitPrice,
			}
		} else {
			if input.ProductID == "" {
				return nil, apperror.NewValidationError(fmt.Sprintf("Item %d: item de catálogo requer o ID do produto.", i+1))
			}
			item.Kind = domain.LineKindCatalog
			item.Catalog = &domain.CatalogLine{ProductID: input.ProductID, Size: input.Size}
			// Snapshot de itens de catálogo é congelado dentro da transação,
			// a partir do estado atual do produto.
		}

		items = append(items, item)
	}

	return items, nil
}
