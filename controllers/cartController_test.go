package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCart(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start, end := now.Add(-time.Hour), now.Add(time.Hour)

	discounted := &models.Product{Title: "Sisal bag", Price: decimal.NewFromInt(1000),
		DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(800)), DiscountStart: &start, DiscountEnd: &end,
		Stock: 10, IsActive: true, Images: []models.ProductImage{{URL: "https://cdn.example.com/bag.jpg"}}}
	short := &models.Product{Title: "Kikoi", Price: decimal.NewFromInt(500), Stock: 1, IsActive: true}
	inactive := &models.Product{Title: "Old stool", Price: decimal.NewFromInt(300), Stock: 5, IsActive: false}

	cart := buildCart([]models.CartItem{
		{ID: 1, ProductID: 1, Quantity: 2, Product: discounted},
		{ID: 2, ProductID: 2, Quantity: 3, Product: short},
		{ID: 3, ProductID: 3, Quantity: 1, Product: inactive},
	}, now)

	require.Len(t, cart.Items, 3)
	assert.True(t, cart.Items[0].Available)
	assert.True(t, decimal.NewFromInt(800).Equal(cart.Items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(1600).Equal(cart.Items[0].LineTotal))
	assert.Equal(t, "https://cdn.example.com/bag.jpg", cart.Items[0].Image)
	assert.False(t, cart.Items[1].Available)
	assert.False(t, cart.Items[2].Available)
	assert.Equal(t, 2, cart.ItemCount)
	assert.True(t, decimal.NewFromInt(1600).Equal(cart.Subtotal))
}

func TestAddToCart(t *testing.T) {
	product := func(stock int) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "title", "price", "stock", "seller_id", "is_active"}).
			AddRow(4, "Kiondo basket", "1500.00", stock, 9, true)
	}

	t.Run("unknown product", func(t *testing.T) {
		mock := setupDB(t)
		r := newRouter(buyer(3))
		r.POST("/cart", AddToCart)

		mock.ExpectQuery("SELECT \\* FROM `products`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		rec := performRequest(r, http.MethodPost, "/cart", map[string]any{"productId": 4, "quantity": 1})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing line exceeds stock", func(t *testing.T) {
		mock := setupDB(t)
		r := newRouter(buyer(3))
		r.POST("/cart", AddToCart)

		mock.ExpectQuery("SELECT \\* FROM `products`").WillReturnRows(product(2))
		mock.ExpectQuery("SELECT \\* FROM `cart_items`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "product_id", "quantity"}).AddRow(7, 3, 4, 2))

		rec := performRequest(r, http.MethodPost, "/cart", map[string]any{"productId": 4, "quantity": 1})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Only 2 of Kiondo basket left in stock", decode(t, rec).Message)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("new line defaults to one", func(t *testing.T) {
		mock := setupDB(t)
		r := newRouter(buyer(3))
		r.POST("/cart", AddToCart)

		mock.ExpectQuery("SELECT \\* FROM `products`").WillReturnRows(product(5))
		mock.ExpectQuery("SELECT \\* FROM `cart_items`").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `cart_items`").
			WithArgs(uint(3), uint(4), 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(8, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT \\* FROM `cart_items`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "product_id", "quantity"}).AddRow(8, 3, 4, 1))
		mock.ExpectQuery("SELECT \\* FROM `products`").WillReturnRows(product(5))
		mock.ExpectQuery("SELECT \\* FROM `product_images`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		rec := performRequest(r, http.MethodPost, "/cart", map[string]any{"productId": 4})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Item added to cart", decode(t, rec).Message)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateCartItemMissingLine(t *testing.T) {
	mock := setupDB(t)
	r := newRouter(buyer(3))
	r.PUT("/cart/:productId", UpdateCartItem)

	mock.ExpectQuery("SELECT \\* FROM `products`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "stock", "is_active"}).AddRow(4, "Kiondo basket", 10, true))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `cart_items` SET `quantity`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rec := performRequest(r, http.MethodPut, "/cart/4", map[string]any{"quantity": 2})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
