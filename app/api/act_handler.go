package api

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"legis/catalog"
	"legis/provider"
	"legis/store"
	"legis/types"
	"legis/votes"
)

type ActHandler struct {
	store     store.DBStorer
	identity  provider.IdentityProvider
	threshold float64
}

func NewActHandler(s store.DBStorer, identity provider.IdentityProvider, threshold float64) *ActHandler {
	return &ActHandler{
		store:     s,
		identity:  identity,
		threshold: threshold,
	}
}

// ActDetail is a single act with the chart data derived from its votes.
type ActDetail struct {
	*types.Act
	Chart *votes.ChartData `json:"chart,omitempty"`
}

func (h *ActHandler) HandleListActs(c *fiber.Ctx) error {
	params := parseActsQuery(c)
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}
	order, err := catalog.ParseOrder(params.Sort, params.Order)
	if err != nil {
		return NewError(fiber.StatusBadRequest, err.Error())
	}
	if params.Toggle != "" {
		order = catalog.StateOf(order).Toggle(catalog.SortKey(params.Toggle)).Order()
	}

	var (
		acts       []types.Act
		categories []types.Category
	)
	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		var err error
		acts, err = h.store.ListActs(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = h.store.ListCategories(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("failed to fetch acts", "error", err)
		return ErrInternal("Failed to fetch acts")
	}

	criteria := catalog.Criteria{
		Query:    params.Query,
		Keywords: params.Keywords,
	}
	for _, t := range params.Types {
		criteria.Types = append(criteria.Types, types.ItemType(t))
	}

	acts = catalog.Visible(acts, h.threshold, isAdmin(c, h.identity))
	if categories == nil {
		categories = []types.Category{}
	}
	return c.JSON(types.ActsResponse{
		Acts:       catalog.Apply(acts, criteria, order),
		Categories: categories,
		Sort:       string(order.Key),
		Order:      string(order.Dir),
	})
}

func (h *ActHandler) HandleGetAct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return ErrInvalidID()
	}
	// width of the client's card in px, sizes the dot row of the chart
	width := c.QueryInt("width", 0)
	if width < 0 {
		return NewError(fiber.StatusBadRequest, "invalid width")
	}

	act, err := h.store.GetActByID(c.UserContext(), int64(id))
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound(id, "act")
	}
	if err != nil {
		slog.Error("failed to fetch act", "id", id, "error", err)
		return ErrInternal("Failed to fetch act")
	}
	if catalog.IsLowConfidence(act.ConfidenceScore, h.threshold) && !isAdmin(c, h.identity) {
		return ErrNotFound(id, "act")
	}

	detail := ActDetail{Act: act}
	chart, err := votes.Chart(act.Votes)
	if err != nil {
		slog.Warn("skipping chart for invalid votes", "id", id, "error", err)
	} else {
		chart.Dots = votes.SplitDots(chart.GovernmentYesPct, width)
		detail.Chart = &chart
	}
	return c.JSON(detail)
}

// parseActsQuery reads repeatable params; type also accepts a comma list.
func parseActsQuery(c *fiber.Ctx) types.ActsQuery {
	args := c.Context().QueryArgs()
	q := types.ActsQuery{
		Query:  c.Query("q"),
		Sort:   c.Query("sort"),
		Order:  c.Query("order"),
		Toggle: c.Query("toggle"),
	}
	for _, v := range args.PeekMulti("type") {
		for _, t := range strings.Split(string(v), ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Types = append(q.Types, t)
			}
		}
	}
	for _, v := range args.PeekMulti("keyword") {
		if k := strings.TrimSpace(string(v)); k != "" {
			q.Keywords = append(q.Keywords, k)
		}
	}
	return q
}
