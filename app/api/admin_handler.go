package api

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"legis/app/hook"
	"legis/provider"
	"legis/store"
	"legis/types"
)

type AdminHandler struct {
	store           store.DBStorer
	identity        provider.IdentityProvider
	notifier        *hook.Notifier
	adminConfidence float64
}

func NewAdminHandler(s store.DBStorer, identity provider.IdentityProvider, notifier *hook.Notifier, adminConfidence float64) *AdminHandler {
	return &AdminHandler{
		store:           s,
		identity:        identity,
		notifier:        notifier,
		adminConfidence: adminConfidence,
	}
}

func (h *AdminHandler) HandleUpdateAct(c *fiber.Ctx) error {
	user, err := requireAdmin(c, h.identity)
	if err != nil {
		return err
	}

	var params types.UpdateActParams
	if c.BodyParser(&params) != nil {
		return NewActionError(fiber.StatusBadRequest, "Invalid request data")
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		e := NewActionError(fiber.StatusBadRequest, "Invalid request data")
		e.Errors = errs
		return e
	}

	querySet := updateSet(params)
	querySet["confidence_score"] = h.adminConfidence

	act, err := h.store.UpdateAct(c.UserContext(), params.ActID, querySet)
	if errors.Is(err, store.ErrNotFound) {
		return NewActionError(fiber.StatusNotFound, "Act not found")
	}
	if err != nil {
		slog.Error("failed to update act", "id", params.ActID, "error", err)
		return NewActionError(fiber.StatusInternalServerError, "Database error")
	}

	slog.Info("act updated by admin", "id", act.ID, "user_id", user.ID, "fields", len(querySet)-1)
	h.notifier.Trigger(hook.RebuildRequest{Reason: "act updated", ActID: act.ID})

	result := &types.UpdateActResult{
		ID:        act.ID,
		UpdatedAt: act.UpdatedAt.Format(time.RFC3339),
	}
	if act.ConfidenceScore != nil {
		result.ConfidenceScore = *act.ConfidenceScore
	}
	return c.JSON(types.UpdateActResponse{
		Success: true,
		Message: "Act updated successfully. Rebuild in progress (~2-5 min).",
		Data:    result,
	})
}

// updateSet maps every supplied field of params to its db column.
func updateSet(params types.UpdateActParams) map[string]any {
	v := reflect.ValueOf(params)
	t := reflect.TypeOf(params)
	querySet := make(map[string]any)
	for i := 0; i < v.NumField(); i++ {
		dbTag := t.Field(i).Tag.Get("db")
		if dbTag == "" {
			continue
		}
		field := v.Field(i)
		if field.Kind() != reflect.Pointer || field.IsNil() {
			continue
		}
		key := strings.Split(dbTag, ",")[0]
		querySet[key] = field.Elem().Interface()
	}
	return querySet
}
