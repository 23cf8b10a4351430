package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCheckout() map[string]any {
	return map[string]any{
		"items":           []map[string]any{{"productId": 4, "quantity": 2}},
		"paymentMethod":   models.PaymentMethodCOD,
		"shippingName":    "Jane Wanjiku",
		"shippingPhone":   "+254700000000",
		"shippingAddress": "Moi Avenue 12",
		"shippingCity":    "Nairobi",
	}
}

func TestCheckoutValidation(t *testing.T) {
	mock := setupDB(t)
	r := newRouter(buyer(3))
	r.POST("/orders/checkout", Checkout)

	body := validCheckout()
	delete(body, "shippingCity")
	body["paymentMethod"] = "mpesa"

	rec := performRequest(r, http.MethodPost, "/orders/checkout", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "paymentMethod")
	assert.Equal(t, "is required", env.Error.Details["shippingCity"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutFromEmptyCart(t *testing.T) {
	mock := setupDB(t)
	r := newRouter(buyer(3))
	r.POST("/orders/checkout", Checkout)

	body := validCheckout()
	delete(body, "items")
	body["fromCart"] = true

	mock.ExpectQuery("SELECT \\* FROM `cart_items` WHERE user_id = \\?").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := performRequest(r, http.MethodPost, "/orders/checkout", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Your cart is empty", decode(t, rec).Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutUnknownProduct(t *testing.T) {
	mock := setupDB(t)
	r := newRouter(buyer(3))
	r.POST("/orders/checkout", Checkout)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `products` .* FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	rec := performRequest(r, http.MethodPost, "/orders/checkout", validCheckout())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSellerTransitionCheck(t *testing.T) {
	unpaid := models.Order{PaymentMethod: models.PaymentMethodPesapal, PaymentStatus: models.PaymentStatusPending}
	paid := models.Order{PaymentMethod: models.PaymentMethodPesapal, PaymentStatus: models.PaymentStatusCompleted}
	cod := models.Order{PaymentMethod: models.PaymentMethodCOD, PaymentStatus: models.PaymentStatusPending}

	cases := []struct {
		name   string
		order  models.Order
		to     string
		status int
	}{
		{"refund is admin only", paid, models.OrderStatusRefunded, http.StatusForbidden},
		{"unpaid gateway order", unpaid, models.OrderStatusConfirmed, http.StatusConflict},
		{"paid gateway order", paid, models.OrderStatusConfirmed, 0},
		{"cash on delivery", cod, models.OrderStatusConfirmed, 0},
		{"shipping", cod, models.OrderStatusShipped, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := sellerTransitionCheck(tc.order, tc.to)
			if tc.status == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.status, utils.ToAppError(err).Status)
		})
	}
}

func orderRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "order_number", "buyer_id", "seller_id", "status", "payment_method", "payment_status", "total"}).
		AddRow(11, "ORD-1", 3, 9, status, models.PaymentMethodCOD, models.PaymentStatusPending, "3000.00")
}

func TestCancelMyOrderAfterShipping(t *testing.T) {
	mock := setupDB(t)
	mock.MatchExpectationsInOrder(false)
	r := newRouter(buyer(3))
	r.POST("/orders/:id/cancel", CancelMyOrder)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `orders` .*FOR UPDATE").WillReturnRows(orderRow(models.OrderStatusShipped))
	mock.ExpectQuery("SELECT \\* FROM `order_items`").WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}))
	mock.ExpectQuery("SELECT \\* FROM `order_status_histories`").WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}))
	mock.ExpectRollback()

	rec := performRequest(r, http.MethodPost, "/orders/11/cancel", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Only pending or confirmed orders can be cancelled", decode(t, rec).Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMyOrderOutsideScope(t *testing.T) {
	mock := setupDB(t)
	r := newRouter(buyer(4))
	r.GET("/orders/:id", GetMyOrder)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE orders.buyer_id = \\? AND orders.id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := performRequest(r, http.MethodGet, "/orders/11", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type stubGateway struct {
	status *utils.TransactionStatus
}

func (s stubGateway) SubmitOrder(context.Context, utils.PaymentRequest) (*utils.PaymentSession, error) {
	return nil, nil
}

func (s stubGateway) TransactionStatus(context.Context, string) (*utils.TransactionStatus, error) {
	return s.status, nil
}

func withStubGateway(t *testing.T, g utils.PaymentGateway) {
	t.Helper()
	prev := initializers.Payments
	initializers.Payments = g
	t.Cleanup(func() { initializers.Payments = prev })
}

func TestHandlePesapalIPN(t *testing.T) {
	t.Run("missing parameters", func(t *testing.T) {
		mock := setupDB(t)
		r := newRouter(nil)
		r.GET("/payments/ipn", HandlePesapalIPN)

		rec := performRequest(r, http.MethodGet, "/payments/ipn?OrderTrackingId=abc", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown tracking id", func(t *testing.T) {
		mock := setupDB(t)
		withStubGateway(t, stubGateway{})
		r := newRouter(nil)
		r.GET("/payments/ipn", HandlePesapalIPN)

		mock.ExpectQuery("SELECT \\* FROM `payment_transactions`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		rec := performRequest(r, http.MethodGet, "/payments/ipn?OrderTrackingId=abc&OrderMerchantReference=CHK-1", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("acknowledges unchanged status", func(t *testing.T) {
		mock := setupDB(t)
		withStubGateway(t, stubGateway{status: &utils.TransactionStatus{TrackingID: "abc", StatusCode: 0}})
		r := newRouter(nil)
		r.POST("/payments/ipn", HandlePesapalIPN)

		mock.ExpectQuery("SELECT \\* FROM `payment_transactions`").
			WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_ref", "tracking_id", "status"}).
				AddRow(1, "CHK-1", "abc", models.PaymentStatusPending))

		rec := performRequest(r, http.MethodPost, "/payments/ipn", map[string]any{
			"OrderTrackingId":        "abc",
			"OrderMerchantReference": "CHK-1",
			"OrderNotificationType":  "IPNCHANGE",
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "IPNCHANGE", body["orderNotificationType"])
		assert.Equal(t, "abc", body["orderTrackingId"])
		assert.Equal(t, "CHK-1", body["orderMerchantReference"])
		assert.EqualValues(t, 200, body["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
