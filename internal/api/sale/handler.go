package sale

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/logger"
	"gopos/internal/pkg/middleware"
)

// SaleService define o contrato que o Handler espera da camada de Serviço.
type SaleService interface {
	CommitSale(ctx domain.Context, submission domain.SaleSubmission, submittedBy string) (domain.Sale, error)
	GetSaleByID(ctx domain.Context, id string) (domain.Sale, error)
	ListSales(ctx domain.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	ReplaceSaleItems(ctx domain.Context, saleID string, submission domain.SaleSubmission) (domain.Sale, error)
	DeleteSale(ctx domain.Context, id string) error
}

// Handler agrupa todos os métodos de Handler de vendas.
type Handler struct {
	Service SaleService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc SaleService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
				http.Error(w, "Erro ao codificar resposta", http.StatusInternalServerError)
			}
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	errorResponse := map[string]interface{}{
		"code":     status,
		"category": category,
		"message":  message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

// SalesHandler despacha /v1/sales: POST registra uma venda, GET lista o ledger.
func (h *Handler) SalesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.commitSale(w, r)
	case http.MethodGet:
		h.listSales(w, r)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// SaleByIDHandler despacha /v1/sales/{id}: GET busca, PUT substitui itens,
// DELETE remove (sem restaurar estoque).
func (h *Handler) SaleByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/sales/")
	if id == "" || strings.Contains(id, "/") {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("ID da venda inválido na URL."), http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sale, err := h.Service.GetSaleByID(r.Context(), id)
		h.handleServiceResponse(w, r, sale, err, http.StatusOK)
	case http.MethodPut:
		h.replaceItems(w, r, id)
	case http.MethodDelete:
		err := h.Service.DeleteSale(r.Context(), id)
		h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// commitSale lida com a requisição POST /v1/sales.
// @Summary Registra uma venda completa
// @Description Registra atomicamente a venda com seus itens, decrementando o estoque por tamanho. Tudo ou nada: estoque insuficiente ou produto inexistente desfaz a venda inteira.
// @Tags sales
// @Accept json
// @Produce json
// @Param submission body domain.SaleSubmission true "Itens, total e forma de pagamento"
// @Success 201 {object} domain.Sale "Venda registrada"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido ou total não confere"
// @Failure 404 {object} domain.ErrorResponse "Produto referenciado não existe"
// @Failure 409 {object} domain.ErrorResponse "Estoque insuficiente"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /sales [post]
func (h *Handler) commitSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Identidade do submissor vem do token, injetada pelo AuthMiddleware.
	claims, ok := middleware.GetUserClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária para registrar venda."), http.StatusCreated)
		return
	}

	var submission domain.SaleSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusCreated)
		return
	}

	sale, err := h.Service.CommitSale(ctx, submission, claims.UserID)
	h.handleServiceResponse(w, r, sale, err, http.StatusCreated)
}

// listSales lida com a requisição GET /v1/sales.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	filter := domain.SaleFilter{}
	q := r.URL.Query()
	fmt.Sscanf(q.Get("page"), "%d", &filter.Page)
	fmt.Sscanf(q.Get("limit"), "%d", &filter.Limit)

	sales, err := h.Service.ListSales(r.Context(), filter)
	h.handleServiceResponse(w, r, sales, err, http.StatusOK)
}

// replaceItems lida com a requisição PUT /v1/sales/{id}.
func (h *Handler) replaceItems(w http.ResponseWriter, r *http.Request, id string) {
	var submission domain.SaleSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusOK)
		return
	}

	sale, err := h.Service.ReplaceSaleItems(r.Context(), id, submission)
	h.handleServiceResponse(w, r, sale, err, http.StatusOK)
}
