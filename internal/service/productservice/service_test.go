package productservice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gopos/internal/domain"
	apperror "gopos/internal/errors"
	"gopos/internal/pkg/logger"
	"gopos/internal/service/productservice"
)

// MockProductRepository é uma implementação mock da interface ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, product domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

// TestCreateProduct_Success testa o cadastro de um produto com grade de tamanhos.
func TestCreateProduct_Success(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	product := domain.Product{
		Title:     "Camiseta Básica",
		Code:      "CAM-001",
		Price:     49.90,
		IsVisible: true,
		Sizes: []domain.SizeStock{
			{Size: "M", Stock: 10},
			{Size: "G", Stock: 5},
		},
	}

	var persisted domain.Product
	mockRepo.On("Save", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.Product")).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(domain.Product)
		}).
		Return(product, nil)

	_, err := svc.CreateProduct(context.Background(), product)

	assert.NoError(t, err)
	assert.NotEmpty(t, persisted.ID) // ID gerado pelo serviço
	assert.True(t, persisted.IsVisible)
	assert.NotZero(t, persisted.CreatedAt)
	mockRepo.AssertExpectations(t)
}

// TestCreateProduct_PreservesHiddenFlag testa que o cadastro respeita a
// visibilidade enviada: um produto criado oculto permanece oculto.
func TestCreateProduct_PreservesHiddenFlag(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	product := domain.Product{
		Title:     "Peça de Mostruário",
		Code:      "MOS-001",
		Price:     10.00,
		IsVisible: false,
	}

	var persisted domain.Product
	mockRepo.On("Save", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.Product")).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(domain.Product)
		}).
		Return(product, nil)

	_, err := svc.CreateProduct(context.Background(), product)

	assert.NoError(t, err)
	assert.False(t, persisted.IsVisible)
	mockRepo.AssertExpectations(t)
}

// TestCreateProduct_Fail_MissingTitle testa a rejeição de produto sem título.
func TestCreateProduct_Fail_MissingTitle(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	product := domain.Product{
		Code:  "CAM-001",
		Price: 49.90,
	}

	_, err := svc.CreateProduct(context.Background(), product)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// TestCreateProduct_Fail_NegativePrice testa a rejeição de preço negativo.
func TestCreateProduct_Fail_NegativePrice(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	product := domain.Product{
		Title: "Camiseta Básica",
		Code:  "CAM-001",
		Price: -1.00,
	}

	_, err := svc.CreateProduct(context.Background(), product)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// TestGetSizeStock_Success testa a resolução do estoque de um tamanho específico.
func TestGetSizeStock_Success(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	productID := uuid.New().String()
	product := domain.Product{
		ID: productID,
		Sizes: []domain.SizeStock{
			{Size: "M", Stock: 10},
			{Size: "G", Stock: 2},
		},
	}

	mockRepo.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), productID).Return(product, nil)

	sizeStock, err := svc.GetSizeStock(context.Background(), productID, "G")

	assert.NoError(t, err)
	assert.Equal(t, 2, sizeStock.Stock)
	mockRepo.AssertExpectations(t)
}

// TestGetSizeStock_Fail_SizeNotDefined testa tamanho não definido na grade do produto.
func TestGetSizeStock_Fail_SizeNotDefined(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	productID := uuid.New().String()
	product := domain.Product{
		ID:    productID,
		Sizes: []domain.SizeStock{{Size: "M", Stock: 10}},
	}

	mockRepo.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), productID).Return(product, nil)

	_, err := svc.GetSizeStock(context.Background(), productID, "XG")

	assert.Error(t, err)
	assert.IsType(t, &apperror.NotFoundError{}, err)
	assert.Contains(t, err.Error(), "XG")
	mockRepo.AssertExpectations(t)
}

// TestGetProductByID_Fail_NotFound testa a propagação de ProductNotFoundError.
func TestGetProductByID_Fail_NotFound(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	productID := uuid.New().String()
	mockRepo.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), productID).
		Return(domain.Product{}, apperror.NewProductNotFoundError(productID))

	_, err := svc.GetProductByID(context.Background(), productID)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ProductNotFoundError{}, err)
	mockRepo.AssertExpectations(t)
}

// TestUpdateProduct_Fail_MissingID testa a rejeição de atualização sem ID.
func TestUpdateProduct_Fail_MissingID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockLogger := logger.NewLogger("debug")

	svc := productservice.NewService(mockRepo, mockLogger)

	product := domain.Product{
		Title: "Camiseta Básica",
		Code:  "CAM-001",
	}

	err := svc.UpdateProduct(context.Background(), product)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
