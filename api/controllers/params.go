package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bintrack-backend/api/validators"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/pagination"
)

const maxIDLength = 64

func pathParam(r *http.Request, key string) (string, error) {
	value := validators.SanitizeString(chi.URLParam(r, key), 0)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" is required")
	}
	if len(value) > maxIDLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" is too long").WithDetails(map[string]any{"field": key, "max": maxIDLength})
	}
	return value, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
