package product

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/logger"
)

// ProductService define o contrato que o Handler espera da camada de Serviço.
type ProductService interface {
	CreateProduct(ctx domain.Context, product domain.Product) (domain.Product, error)
	GetProductByID(ctx domain.Context, id string) (domain.Product, error)
	GetSizeStock(ctx domain.Context, productID, size string) (domain.SizeStock, error)
	ListProducts(ctx domain.Context, filter domain.ProductFilter) ([]domain.Product, error)
	UpdateProduct(ctx domain.Context, product domain.Product) error
}

// Handler agrupa todos os métodos de Handler do catálogo.
type Handler struct {
	Service ProductService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc ProductService, log logger.Logger) *Handler {
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

// ProductsHandler despacha /v1/products: POST cadastra, GET lista o catálogo.
func (h *Handler) ProductsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createProduct(w, r)
	case http.MethodGet:
		h.listProducts(w, r)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// ProductByIDHandler despacha /v1/products/{id} e /v1/products/{id}/sizes/{size}.
func (h *Handler) ProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.productByID(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "sizes" && parts[2] != "":
		h.sizeStock(w, r, parts[0], parts[2])
	default:
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Caminho de produto inválido na URL."), http.StatusOK)
	}
}

// createProduct lida com a requisição POST /v1/products.
// @Summary Cadastra um produto no catálogo
// @Tags products
// @Accept json
// @Produce json
// @Param product body domain.Product true "Produto com grade de tamanhos"
// @Success 201 {object} domain.Product "Produto cadastrado"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /products [post]
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	// Visível por padrão; o payload pode ocultar explicitamente com is_visible=false.
	product := domain.Product{IsVisible: true}
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusCreated)
		return
	}

	created, err := h.Service.CreateProduct(r.Context(), product)
	h.handleServiceResponse(w, r, created, err, http.StatusCreated)
}

// listProducts lida com a requisição GET /v1/products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Title:       q.Get("title"),
		Code:        q.Get("code"),
		VisibleOnly: q.Get("visible") == "true",
	}
	fmt.Sscanf(q.Get("page"), "%d", &filter.Page)
	fmt.Sscanf(q.Get("limit"), "%d", &filter.Limit)

	products, err := h.Service.ListProducts(r.Context(), filter)
	h.handleServiceResponse(w, r, products, err, http.StatusOK)
}

// productByID lida com GET e PUT em /v1/products/{id}.
func (h *Handler) productByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		product, err := h.Service.GetProductByID(r.Context(), id)
		h.handleServiceResponse(w, r, product, err, http.StatusOK)
	case http.MethodPut:
		var product domain.Product
		if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
			h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusOK)
			return
		}
		product.ID = id
		err := h.Service.UpdateProduct(r.Context(), product)
		h.handleServiceResponse(w, r, map[string]string{"status": "updated"}, err, http.StatusOK)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// sizeStock lida com GET /v1/products/{id}/sizes/{size}: o findSizeStock
// exposto ao restante da aplicação.
func (h *Handler) sizeStock(w http.ResponseWriter, r *http.Request, id, size string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	sizeStock, err := h.Service.GetSizeStock(r.Context(), id, size)
	h.handleServiceResponse(w, r, sizeStock, err, http.StatusOK)
}
