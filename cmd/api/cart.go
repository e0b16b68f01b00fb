package main

import (
	"errors"
	"fmt"
	"net/http"

	"mercado/internal/checkout"
	"mercado/internal/domain/catalog"

	"github.com/go-chi/chi/v5"
)

// sessionController resolves the checkout controller bound to the request's
// session key.
func (app *application) sessionController(r *http.Request) (*checkout.Controller, string, error) {
	key := sessionKeyFromContext(r.Context())
	if key == "" {
		return nil, "", fmt.Errorf("missing checkout session")
	}
	ctrl, err := app.sessions.Get(r.Context(), key)
	if err != nil {
		return nil, "", err
	}
	return ctrl, key, nil
}

type cartView struct {
	Items  []checkout.CartLine `json:"items"`
	Totals checkout.Totals     `json:"totals"`
}

func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	view := cartView{Items: ctrl.Items(), Totals: ctrl.Totals()}
	if err := app.jsonResponse(w, http.StatusOK, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

type AddCartItemPayload struct {
	VariantID int64 `json:"variant_id" validate:"required,min=1"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

// addCartItemHandler resolves the variant against the catalog (price, name,
// stock picture at add time) and hands the line to the controller, which
// merges it into an existing line when product and attributes match.
func (app *application) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var payload AddCartItemPayload
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

	cv, err := app.store.Catalog.GetCartVariant(r.Context(), payload.VariantID)
	if err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	stock := cv.StockQuantity
	line := checkout.CartLine{
		ProductID:      cv.ProductID,
		VariantID:      cv.VariantID,
		Name:           cv.ProductName,
		UnitPriceCents: cv.PriceCents,
		Quantity:       payload.Quantity,
		ImageURL:       cv.PrimaryImageURL,
		SKU:            cv.SKU,
		VariantAttrs:   cv.Attributes,
		VendorID:       cv.VendorID,
		VendorName:     cv.VendorName,
		StockAvailable: &stock,
		MaxStock:       cv.MaxPerOrder,
	}

	added, err := ctrl.AddItem(line)
	if err != nil {
		if errors.Is(err, checkout.ErrStockCeiling) {
			app.conflictResponse(w, r, err)
			return
		}
		app.badRequestResponse(w, r, err)
		return
	}

	type response struct {
		Line          checkout.CartLine `json:"line"`
		Totals        checkout.Totals   `json:"totals"`
		OpenCartPanel bool              `json:"open_cart_panel"`
	}
	if err := app.jsonResponse(w, http.StatusCreated, response{
		Line:          added,
		Totals:        ctrl.Totals(),
		OpenCartPanel: true,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateCartItemPayload struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var payload UpdateCartItemPayload
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

	if err := ctrl.UpdateQuantity(itemID, payload.Quantity); err != nil {
		if errors.Is(err, checkout.ErrStockCeiling) {
			app.conflictResponse(w, r, err)
			return
		}
		app.badRequestResponse(w, r, err)
		return
	}

	view := cartView{Items: ctrl.Items(), Totals: ctrl.Totals()}
	if err := app.jsonResponse(w, http.StatusOK, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.RemoveItem(itemID)

	view := cartView{Items: ctrl.Items(), Totals: ctrl.Totals()}
	if err := app.jsonResponse(w, http.StatusOK, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctrl.ClearCart()

	view := cartView{Items: ctrl.Items(), Totals: ctrl.Totals()}
	if err := app.jsonResponse(w, http.StatusOK, view); err != nil {
		app.internalServerError(w, r, err)
	}
}
