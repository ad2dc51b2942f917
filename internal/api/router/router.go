package router

import (
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"gopos/internal/api/product"
	"gopos/internal/api/sale"
	"gopos/internal/api/stock"
	"gopos/internal/api/user"
	"gopos/internal/domain"
	"gopos/internal/pkg/cache"
	"gopos/internal/pkg/middleware"
)

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências e aplica
// os middlewares de autenticação/permissão por rota:
//
//   - registro de venda: admin ou cashier (o submissor vem do token);
//   - manutenção de venda, ajuste de estoque e escrita de catálogo: admin;
//   - leitura de catálogo e login: públicas.
func NewRouter(
	productHandler *product.Handler,
	stockHandler *stock.Handler,
	saleHandler *sale.Handler,
	userHandler *user.Handler,
	tokenSvc middleware.TokenService,
	cacheClient cache.Client,
	rateLimit int,
	ratePeriod time.Duration,
) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento
	mux := http.NewServeMux()

	auth := middleware.NewAuthMiddleware(tokenSvc)
	adminOnly := middleware.PermissionMiddleware(domain.RoleAdmin)
	operators := middleware.PermissionMiddleware(domain.RoleAdmin, domain.RoleCashier)

	// --- 1. Rota de Health Check ---
	mux.HandleFunc("/ping", PingHandler)

	// --- 2. Rotas de Usuário (públicas) ---
	mux.HandleFunc("/v1/register", userHandler.RegisterUserHandler)
	mux.HandleFunc("/v1/login", userHandler.LoginUserHandler)

	// --- 3. Rotas do Catálogo ---
	// GET é público (consulta do storefront); POST/PUT exigem admin.
	mux.HandleFunc("/v1/products", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			productHandler.ProductsHandler(w, r)
			return
		}
		auth(adminOnly(productHandler.ProductsHandler))(w, r)
	})
	mux.HandleFunc("/v1/products/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			productHandler.ProductByIDHandler(w, r)
			return
		}
		auth(adminOnly(productHandler.ProductByIDHandler))(w, r)
	})

	// --- 4. Rotas de Estoque (admin) ---
	mux.HandleFunc("/v1/stock/adjust", auth(adminOnly(stockHandler.AdjustStockHandler)))

	// --- 5. Rotas de Venda ---
	// POST (registro) aceita admin e cashier; o restante é admin.
	mux.HandleFunc("/v1/sales", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			auth(operators(saleHandler.SalesHandler))(w, r)
			return
		}
		auth(adminOnly(saleHandler.SalesHandler))(w, r)
	})
	mux.HandleFunc("/v1/sales/", auth(adminOnly(saleHandler.SaleByIDHandler)))

	// --- 6. Documentação (Swagger UI) ---
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// --- 7. Middlewares Globais ---
	return middleware.RateLimiter(cacheClient, rateLimit, ratePeriod)(mux)
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
