package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mercado/internal/checkout"
	"mercado/internal/domain/orders"
	"mercado/internal/domain/storage"
	"mercado/internal/mailer"
	"mercado/internal/notifications"
	"mercado/internal/params"
	"mercado/internal/payments"

	"github.com/go-chi/chi/v5"
)

type PlaceOrderPayload struct {
	CustomerEmail string `json:"customer_email" validate:"required,email"`
}

type placeOrderResponse struct {
	Order      *orders.Order `json:"order"`
	PaymentURL string        `json:"payment_url,omitempty"`
	Checkout   checkoutView  `json:"checkout"`
}

// placeOrderHandler runs the submission protocol: lock the controller,
// reserve stock and create the order in one transaction, hand the amount to
// the payment gateway, then advance the step machine. Any failure before the
// gateway call leaves the checkout state untouched apart from Error.
func (app *application) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload PlaceOrderPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctrl, sessionKey, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if !ctrl.SetProcessing(true) {
		app.conflictResponse(w, r, fmt.Errorf("an order is already being placed for this session"))
		return
	}
	// Released explicitly before the step advance below; the defer only
	// covers the error returns.
	defer ctrl.SetProcessing(false)

	if ctrl.CurrentStep() != checkout.StepPayment {
		app.badRequestResponse(w, r, fmt.Errorf("orders are placed from the payment step, not %s", ctrl.CurrentStep()))
		return
	}
	if !ctrl.ValidateCurrentStep() {
		app.validationFailedResponse(w, r, ctrl.ValidationErrors())
		return
	}

	items := ctrl.Items()
	addr := ctrl.ShippingAddress()
	payment := ctrl.PaymentInfo()
	totals := ctrl.Totals()

	if len(items) == 0 || addr == nil || payment == nil {
		app.badRequestResponse(w, r, fmt.Errorf("checkout is missing cart items, shipping address or payment method"))
		return
	}
	if !app.payments.Supports(payment.Method) {
		app.badRequestResponse(w, r, fmt.Errorf("unsupported payment method: %s", payment.Method))
		return
	}

	draft := orders.Draft{
		SessionKey: sessionKey,
		Shipping: orders.ShippingInfo{
			Name:           addr.Name,
			Phone:          addr.Phone,
			Address:        addr.Address,
			City:           addr.City,
			Department:     addr.Department,
			PostalCode:     addr.PostalCode,
			AdditionalInfo: addr.AdditionalInfo,
		},
		PaymentMethod: payment.Method,
		Notes:         ctrl.OrderNotes(),
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		ShippingCents: totals.ShippingCents,
		TotalCents:    totals.TotalCents,
	}
	for _, line := range items {
		draft.Items = append(draft.Items, orders.DraftItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			ProductName:    line.Name,
			VariantAttrs:   line.VariantAttrs,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	var order *orders.Order
	err = app.store.WithCheckoutTx(r.Context(), func(s *storage.CheckoutTx) error {
		for _, item := range draft.Items {
			if err := s.Catalog.ReserveStock(r.Context(), item.VariantID, item.Quantity); err != nil {
				return fmt.Errorf("reserving stock for variant %d: %w", item.VariantID, err)
			}
		}
		var txErr error
		order, txErr = s.Orders.Create(r.Context(), draft)
		return txErr
	})
	if err != nil {
		ctrl.SetError("No pudimos crear tu pedido. Intenta de nuevo.")
		app.internalServerError(w, r, err)
		return
	}

	payResp, err := app.payments.InitiatePayment(r.Context(), payment.Method, payments.PaymentRequest{
		Reference:     order.OrderNumber,
		AmountCents:   order.TotalCents,
		Currency:      "COP",
		OrderName:     fmt.Sprintf("Pedido %s", order.OrderNumber),
		CustomerName:  addr.Name,
		CustomerEmail: payload.CustomerEmail,
		CustomerPhone: addr.Phone,
	})
	if err != nil {
		// The order exists and stock is held; the buyer can retry payment
		// from the order page.
		app.logger.Errorw("payment initiation failed", "order", order.OrderNumber, "method", payment.Method, "error", err)
		ctrl.SetError("El pedido fue creado pero el pago no pudo iniciarse.")
	}

	ctrl.SetOrderID(order.OrderNumber)
	// GoToNextStep refuses to move while the processing guard is held, so
	// release it first; the deferred release is then a no-op.
	ctrl.SetProcessing(false)
	if !ctrl.GoToNextStep() {
		app.logger.Errorw("checkout did not advance after order creation", "order", order.OrderNumber, "step", ctrl.CurrentStep())
	}
	ctrl.ClearCart()

	app.sendOrderConfirmation(sessionKey, payload.CustomerEmail, order)

	resp := placeOrderResponse{
		Order:      order,
		PaymentURL: payResp.PaymentURL,
		Checkout:   newCheckoutView(ctrl),
	}
	if err := app.jsonResponse(w, http.StatusCreated, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// sendOrderConfirmation fires the email and push in the background so the
// place-order response never waits on SMTP or Expo.
func (app *application) sendOrderConfirmation(sessionKey, email string, order *orders.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		data := map[string]any{
			"OrderNumber": order.OrderNumber,
			"TotalCents":  order.TotalCents,
			"Status":      order.Status,
		}
		if status, err := app.mailer.Send(mailer.OrderConfirmationTemplate, "", email, data); err != nil {
			app.logger.Errorw("order confirmation email failed", "order", order.OrderNumber, "status", status, "error", err)
		}

		if err := notifications.SendOrderNotification(ctx, app.push, app.store.PushTokens, sessionKey, notifications.OrderPlaced, order.OrderNumber); err != nil {
			app.logger.Errorw("order push notification failed", "order", order.OrderNumber, "error", err)
		}
	}()
}

func (app *application) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	_, sessionKey, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	detail, err := app.store.Orders.GetByNumber(r.Context(), orderNumber)
	if err != nil {
		app.notFoundResponse(w, r, err)
		return
	}
	if detail.Order.SessionKey != sessionKey {
		app.notFoundResponse(w, r, fmt.Errorf("order %s does not belong to this session", orderNumber))
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, detail); err != nil {
		app.internalServerError(w, r, err)
	}
}

type orderListResponse struct {
	Orders     []orders.Order    `json:"orders"`
	Pagination params.Pagination `json:"pagination"`
}

func (app *application) listSessionOrdersHandler(w http.ResponseWriter, r *http.Request) {
	_, sessionKey, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	p := params.ParsePagination(r.URL.Query())
	list, total, err := app.store.Orders.ListBySession(r.Context(), sessionKey, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, orderListResponse{Orders: list, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// wompiWebhookEvent is the slice of Wompi's transaction.updated payload we
// act on.
type wompiWebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Transaction struct {
			ID                string `json:"id"`
			Status            string `json:"status"`
			Reference         string `json:"reference"`
			PaymentMethodType string `json:"payment_method_type"`
		} `json:"transaction"`
	} `json:"data"`
}

// paymentWebhookHandler never trusts the webhook body: the transaction is
// re-fetched from the provider and only the verified status is persisted.
func (app *application) paymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var event wompiWebhookEvent
	if err := readJSON(w, r, &event); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	tx := event.Data.Transaction
	if tx.Reference == "" {
		app.badRequestResponse(w, r, fmt.Errorf("webhook payload has no transaction reference"))
		return
	}

	verified, err := app.payments.VerifyPayment(r.Context(), "wompi", payments.PaymentVerifyRequest{
		Reference: tx.Reference,
		Data:      map[string]string{"transaction_id": tx.ID},
	})
	if err != nil {
		app.logger.Errorw("payment verification failed", "reference", tx.Reference, "error", err)
		app.internalServerError(w, r, err)
		return
	}

	if verified.Success {
		if err := app.store.Orders.MarkPaid(r.Context(), tx.Reference, tx.PaymentMethodType, verified.ProviderTxID); err != nil {
			app.internalServerError(w, r, err)
			return
		}
		app.notifyOrderPaid(tx.Reference)
	} else {
		if err := app.store.Orders.MarkPaymentFailed(r.Context(), tx.Reference); err != nil {
			app.internalServerError(w, r, err)
			return
		}
	}

	app.logger.Infow("payment webhook processed", "reference", tx.Reference, "approved", verified.Success)
	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"status": "processed"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) notifyOrderPaid(orderNumber string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		detail, err := app.store.Orders.GetByNumber(ctx, orderNumber)
		if err != nil {
			app.logger.Errorw("paid order lookup failed", "order", orderNumber, "error", err)
			return
		}
		if err := notifications.SendOrderNotification(ctx, app.push, app.store.PushTokens, detail.Order.SessionKey, notifications.OrderPaid, orderNumber); err != nil {
			app.logger.Errorw("paid push notification failed", "order", orderNumber, "error", err)
		}
	}()
}

func (app *application) adminListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query())
	status := r.URL.Query().Get("status")

	list, total, err := app.store.Orders.ListAll(r.Context(), status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, orderListResponse{Orders: list, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateOrderStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

var statusEvents = map[string]notifications.OrderEvent{
	"shipped":   notifications.OrderShipped,
	"delivered": notifications.OrderDelivered,
	"cancelled": notifications.OrderCancelled,
}

func (app *application) adminUpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid order id"))
		return
	}

	var payload UpdateOrderStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Orders.UpdateStatus(r.Context(), orderID, payload.Status); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if event, ok := statusEvents[payload.Status]; ok {
		app.notifyOrderStatus(orderID, event)
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"status": payload.Status}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) notifyOrderStatus(orderID int64, event notifications.OrderEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Status updates key off the numeric id; resolve the order to get
		// the session and the human-facing number.
		order, err := app.store.Orders.GetByID(ctx, orderID)
		if err != nil {
			app.logger.Errorw("order lookup for status push failed", "order_id", orderID, "error", err)
			return
		}
		if err := notifications.SendOrderNotification(ctx, app.push, app.store.PushTokens, order.SessionKey, event, order.OrderNumber); err != nil {
			app.logger.Errorw("status push notification failed", "order", order.OrderNumber, "error", err)
		}
	}()
}
