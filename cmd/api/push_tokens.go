package main

import (
	"encoding/json"
	"net/http"
)

type PushTokenPayload struct {
	Token      string          `json:"token" validate:"required"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
}

func (app *application) registerPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload PushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	_, sessionKey, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.PushTokens.AddOrUpdatePushToken(r.Context(), sessionKey, payload.Token, payload.DeviceInfo); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, map[string]string{"status": "registered"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) removePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload PushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	_, sessionKey, err := app.sessionController(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.PushTokens.RemovePushToken(r.Context(), sessionKey, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"status": "removed"}); err != nil {
		app.internalServerError(w, r, err)
	}
}
