package service

import (
	"context"
	"testing"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires every service against an in-memory database
type testEnv struct {
	db *gorm.DB

	users    repository.UserRepository
	products repository.ProductRepository

	accounts UserService
	orders   OrderService
	quotes   QuoteService
	invoices InvoiceService
	payments PaymentService
	catalog  CatalogService
	audit    AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Category{},
		&model.CategoryFilter{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.StockMovement{},
		&model.Quote{},
		&model.QuoteItem{},
		&model.Invoice{},
		&model.Payment{},
		&model.AuditLog{},
	))

	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	stockRepo := repository.NewStockMovementRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return &testEnv{
		db:       db,
		users:    userRepo,
		products: productRepo,
		accounts: NewUserService(userRepo, tokenRepo, txManager),
		orders:   NewOrderService(orderRepo, productRepo, userRepo, stockRepo, auditRepo, txManager, nil),
		quotes:   NewQuoteService(quoteRepo, orderRepo, productRepo, auditRepo, txManager),
		invoices: NewInvoiceService(invoiceRepo, orderRepo, userRepo, paymentRepo, auditRepo, txManager),
		payments: NewPaymentService(paymentRepo, invoiceRepo, userRepo, auditRepo, txManager, nil),
		catalog:  NewCatalogService(productRepo, categoryRepo, auditRepo, txManager),
		audit:    NewAuditService(auditRepo),
	}
}

func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		Role:     model.RoleCustomer,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) createAdmin(t *testing.T) (*model.User, Actor) {
	t.Helper()
	admin := &model.User{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "hashed",
		Role:     model.RoleAdmin,
	}
	require.NoError(t, e.users.Create(context.Background(), admin))
	return admin, Actor{ID: admin.ID, IsAdmin: true}
}

func (e *testEnv) createCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	category := &model.Category{Name: name, ProductType: model.ProductTypeRibbon}
	require.NoError(t, e.db.Create(category).Error)
	return category
}

func (e *testEnv) createProduct(t *testing.T, name string, price float64, stock int) *model.Product {
	t.Helper()
	category := e.createCategory(t, "cat-"+name+"-"+uuid.NewString()[:8])
	product := &model.Product{
		Name:        name,
		CategoryID:  category.ID,
		Price:       price,
		Stock:       stock,
		MinOrderQty: 1,
		IsAvailable: true,
	}
	require.NoError(t, e.products.Create(context.Background(), product))
	return product
}

func actorFor(u *model.User) Actor {
	return Actor{ID: u.ID, IsAdmin: u.Role == model.RoleAdmin}
}
