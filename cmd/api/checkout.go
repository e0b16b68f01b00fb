package main

import (
	"fmt"
	"net/http"

	"mercado/internal/checkout"

	"github.com/go-chi/chi/v5"
)

type checkoutView struct {
	Step             checkout.Step              `json:"step"`
	Items            []checkout.CartLine        `json:"items"`
	Totals           checkout.Totals            `json:"totals"`
	ShippingAddress  *checkout.ShippingAddress  `json:"shipping_address,omitempty"`
	Payment          *checkout.PaymentSelection `json:"payment,omitempty"`
	SavedAddresses   []checkout.ShippingAddress `json:"saved_addresses,omitempty"`
	OrderNotes       string                     `json:"order_notes,omitempty"`
	OrderID          string                     `json:"order_id,omitempty"`
	Processing       bool                       `json:"processing"`
	Error            string                     `json:"error,omitempty"`
	ValidationErrors map[string]string          `json:"validation_errors,omitempty"`
	CanProceed       bool                       `json:"can_proceed"`
}

func newCheckoutView(ctrl *checkout.Controller) checkoutView {
	return checkoutView{
		Step:             ctrl.CurrentStep(),
		Items:            ctrl.Items(),
		Totals:           ctrl.Totals(),
		ShippingAddress:  ctrl.ShippingAddress(),
		Payment:          ctrl.PaymentInfo(),
		SavedAddresses:   ctrl.SavedAddresses(),
		OrderNotes:       ctrl.OrderNotes(),
		OrderID:          ctrl.OrderID(),
		Processing:       ctrl.IsProcessing(),
		Error:            ctrl.Error(),
		ValidationErrors: ctrl.ValidationErrors(),
		CanProceed:       ctrl.CanProceedToNextStep(),
	}
}

func (app *application) getCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) nextStepHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if !ctrl.GoToNextStep() {
		fields := ctrl.ValidationErrors()
		if fields == nil {
			fields = map[string]string{"step": "cannot advance"}
		}
		app.validationFailedResponse(w, r, fields)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) previousStepHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.GoToPreviousStep()

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

type SetStepPayload struct {
	Step string `json:"step" validate:"required"`
}

func (app *application) setStepHandler(w http.ResponseWriter, r *http.Request) {
	var payload SetStepPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	step := checkout.Step(payload.Step)
	if !checkout.ValidStep(step) {
		app.badRequestResponse(w, r, fmt.Errorf("unknown step: %s", payload.Step))
		return
	}

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if !ctrl.SetCurrentStep(step) {
		app.badRequestResponse(w, r, fmt.Errorf("cannot skip forward to %s", step))
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

type ShippingAddressPayload struct {
	Name           string  `json:"name" validate:"required,max=120"`
	Phone          string  `json:"phone" validate:"required,colombiaphone"`
	Address        string  `json:"address" validate:"required,max=255"`
	City           string  `json:"city" validate:"required,max=80"`
	Department     *string `json:"department,omitempty" validate:"omitempty,max=80"`
	PostalCode     *string `json:"postal_code,omitempty" validate:"omitempty,max=16"`
	AdditionalInfo *string `json:"additional_info,omitempty" validate:"omitempty,max=255"`
	SaveAddress    bool    `json:"save_address"`
	IsDefault      bool    `json:"is_default"`
}

func (p ShippingAddressPayload) toAddress() checkout.ShippingAddress {
	return checkout.ShippingAddress{
		Name:           p.Name,
		Phone:          p.Phone,
		Address:        p.Address,
		City:           p.City,
		Department:     p.Department,
		PostalCode:     p.PostalCode,
		AdditionalInfo: p.AdditionalInfo,
		IsDefault:      p.IsDefault,
	}
}

func (app *application) setShippingAddressHandler(w http.ResponseWriter, r *http.Request) {
	var payload ShippingAddressPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	addr := payload.toAddress()
	if payload.SaveAddress {
		addr = ctrl.AddSavedAddress(addr)
	}
	ctrl.SetShippingAddress(addr)

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

type ShippingCostPayload struct {
	CostCents int64 `json:"cost_cents" validate:"min=0"`
}

func (app *application) setShippingCostHandler(w http.ResponseWriter, r *http.Request) {
	var payload ShippingCostPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.SetShippingCost(payload.CostCents)

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

type PaymentSelectionPayload struct {
	Method string            `json:"method" validate:"required,oneof=pse card nequi bank_transfer cash_on_delivery"`
	Data   map[string]string `json:"data,omitempty"`
}

func (app *application) setPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload PaymentSelectionPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.SetPaymentInfo(checkout.PaymentSelection{Method: payload.Method, Data: payload.Data})

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

type OrderNotesPayload struct {
	Notes string `json:"notes" validate:"max=1000"`
}

func (app *application) setOrderNotesHandler(w http.ResponseWriter, r *http.Request) {
	var payload OrderNotesPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.SetOrderNotes(payload.Notes)

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) resetCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.ResetCheckout()

	if err := app.jsonResponse(w, http.StatusOK, newCheckoutView(ctrl)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listSavedAddressesHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, ctrl.SavedAddresses()); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) addSavedAddressHandler(w http.ResponseWriter, r *http.Request) {
	var payload ShippingAddressPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	addr := ctrl.AddSavedAddress(payload.toAddress())

	if err := app.jsonResponse(w, http.StatusCreated, addr); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) removeSavedAddressHandler(w http.ResponseWriter, r *http.Request) {
	addressID := chi.URLParam(r, "addressID")

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.RemoveSavedAddress(addressID)

	if err := app.jsonResponse(w, http.StatusOK, ctrl.SavedAddresses()); err != nil {
		app.internalServerError(w, r, err)
	}
}
