package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mercado/internal/domain/catalog"
	"mercado/internal/params"

	"github.com/go-chi/chi/v5"
)

type productListResponse struct {
	Products   []catalog.ProductCard `json:"products"`
	Pagination params.Pagination     `json:"pagination"`
}

func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query())

	cards, total, err := app.store.Catalog.ListProducts(r.Context(), p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, productListResponse{Products: cards, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid product id"))
		return
	}

	detail, err := app.store.Catalog.GetProductDetail(r.Context(), productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, detail); err != nil {
		app.internalServerError(w, r, err)
	}
}
