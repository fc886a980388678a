package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names so clients can match them
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func validateStruct(params any) map[string]string {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return out
}

// UpdateActParams is the admin edit payload. Nil fields are left untouched;
// the db tag names the column a supplied field is written to.
type UpdateActParams struct {
	ActID         int64   `json:"actId" validate:"required,gt=0"`
	Content       *string `json:"content,omitempty" db:"content" validate:"omitempty,max=50000"`
	SimpleTitle   *string `json:"simpleTitle,omitempty" db:"simple_title" validate:"omitempty,max=500"`
	ImpactSection *string `json:"impactSection,omitempty" db:"impact_section" validate:"omitempty,max=10000"`
}

func (params *UpdateActParams) Validate() map[string]string {
	return validateStruct(params)
}

type UpdateActResult struct {
	ID              int64   `json:"id"`
	ConfidenceScore float64 `json:"confidenceScore"`
	UpdatedAt       string  `json:"updatedAt"`
}

type UpdateActResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    *UpdateActResult `json:"data,omitempty"`
}

type CheckoutParams struct {
	PriceID string `json:"priceId" validate:"required"`
	UserID  string `json:"userId"`
}

func (params *CheckoutParams) Validate() map[string]string {
	return validateStruct(params)
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
}

type ModalLimitParams struct {
	UserID string `json:"userId" validate:"required"`
}

func (params *ModalLimitParams) Validate() map[string]string {
	return validateStruct(params)
}

type ModalLimitResponse struct {
	Success         bool `json:"success"`
	ClicksThisMonth int  `json:"clicks_this_month"`
	CanOpen         bool `json:"can_open"`
	Limit           int  `json:"limit"`
}

// ActsQuery carries the list filters taken from the query string.
type ActsQuery struct {
	Query    string   `json:"q"`
	Types    []string `json:"type" validate:"dive,oneof=Ustawa Rozporządzenie Obwieszczenie"`
	Keywords []string `json:"keyword"`
	Sort     string   `json:"sort" validate:"omitempty,oneof=title date"`
	Order    string   `json:"order" validate:"omitempty,oneof=asc desc"`
	// Toggle flips or activates one sort key relative to Sort and Order.
	Toggle string `json:"toggle" validate:"omitempty,oneof=title date"`
}

func (params *ActsQuery) Validate() map[string]string {
	return validateStruct(params)
}

type PublicConfig struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	ModalLimit          int     `json:"modalLimit"`
}
