package tools

import (
	"context"
	"encoding/json"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// registerBuiltins wires every backend-delegating wrapper into the
// dispatch table. Each wrapper validates its input shape and forwards
// the validated input and context to the backend unchanged.
func (r *Registry) registerBuiltins() {
	r.Register("cart.add_item", r.cartAddItem)
	r.Register("cart.remove_item", r.cartRemoveItem)
	r.Register("cart.view", r.passthrough("cart.view", &emptyInput{}))
	r.Register("cart.clear", r.passthrough("cart.clear", &emptyInput{}))
	r.Register("menu.search", r.menuSearch)
	r.Register("menu.get_item", r.menuGetItem)
	r.Register("order.submit", r.orderSubmit)
	r.Register("order.status", r.orderStatus)
	r.Register("order.cancel", r.orderCancel)
	r.Register("service.call_staff", r.serviceCallStaff)
	r.Register("guest.get_profile", r.passthrough("guest.get_profile", &emptyInput{}))
	r.Register("venues.list_nearby", r.venuesListNearby)
	r.Register("venues.get", r.venuesGet)
	r.Register("research.search_web", r.researchSearchWeb)
	r.Register("research.open_url", r.researchOpenURL)
	r.Register("research.compose_digest", r.researchComposeDigest)
	r.Register("proposals.propose_actions", r.proposeActions)
	r.Register("foundation.ping", foundationPing)
	r.Register("foundation.whoami", foundationWhoami)
}

type emptyInput struct{}

// passthrough builds a wrapper for tools whose input must be an empty
// object. Validation still runs so unexpected fields fail closed.
func (r *Registry) passthrough(toolName string, shape interface{}) Handler {
	return func(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
		if err := decodeStrict(toolName, input, shape); err != nil {
			return nil, err
		}
		return r.backend.ExecuteTool(ctx, toolName, input, cc)
	}
}

// ── Cart ────────────────────────────────────────────────────

type cartAddItemInput struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

func (r *Registry) cartAddItem(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in cartAddItemInput
	if err := decodeStrict("cart.add_item", input, &in); err != nil {
		return nil, err
	}
	if in.ItemID == "" {
		return nil, &ValidationError{Tool: "cart.add_item", Reason: "item_id is required"}
	}
	if in.Quantity < 1 {
		return nil, &ValidationError{Tool: "cart.add_item", Reason: "quantity must be >= 1"}
	}
	return r.backend.ExecuteTool(ctx, "cart.add_item", input, cc)
}

type cartRemoveItemInput struct {
	ItemID string `json:"item_id"`
}

func (r *Registry) cartRemoveItem(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in cartRemoveItemInput
	if err := decodeStrict("cart.remove_item", input, &in); err != nil {
		return nil, err
	}
	if in.ItemID == "" {
		return nil, &ValidationError{Tool: "cart.remove_item", Reason: "item_id is required"}
	}
	return r.backend.ExecuteTool(ctx, "cart.remove_item", input, cc)
}

// ── Menu ────────────────────────────────────────────────────

type menuSearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (r *Registry) menuSearch(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in menuSearchInput
	if err := decodeStrict("menu.search", input, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, &ValidationError{Tool: "menu.search", Reason: "query is required"}
	}
	return r.backend.ExecuteTool(ctx, "menu.search", input, cc)
}

type menuGetItemInput struct {
	ItemID string `json:"item_id"`
}

func (r *Registry) menuGetItem(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in menuGetItemInput
	if err := decodeStrict("menu.get_item", input, &in); err != nil {
		return nil, err
	}
	if in.ItemID == "" {
		return nil, &ValidationError{Tool: "menu.get_item", Reason: "item_id is required"}
	}
	return r.backend.ExecuteTool(ctx, "menu.get_item", input, cc)
}

// ── Orders ──────────────────────────────────────────────────

type orderSubmitInput struct {
	CartID string `json:"cart_id"`
	// ClientConfirmationID is the caller's idempotency token. The wrapper
	// forwards it untouched; it adds no retry or dedup of its own.
	ClientConfirmationID string `json:"client_confirmation_id,omitempty"`
}

func (r *Registry) orderSubmit(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in orderSubmitInput
	if err := decodeStrict("order.submit", input, &in); err != nil {
		return nil, err
	}
	if in.CartID == "" {
		return nil, &ValidationError{Tool: "order.submit", Reason: "cart_id is required"}
	}
	return r.backend.ExecuteTool(ctx, "order.submit", input, cc)
}

type orderStatusInput struct {
	OrderID string `json:"order_id"`
}

func (r *Registry) orderStatus(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in orderStatusInput
	if err := decodeStrict("order.status", input, &in); err != nil {
		return nil, err
	}
	if in.OrderID == "" {
		return nil, &ValidationError{Tool: "order.status", Reason: "order_id is required"}
	}
	return r.backend.ExecuteTool(ctx, "order.status", input, cc)
}

type orderCancelInput struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

func (r *Registry) orderCancel(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in orderCancelInput
	if err := decodeStrict("order.cancel", input, &in); err != nil {
		return nil, err
	}
	if in.OrderID == "" {
		return nil, &ValidationError{Tool: "order.cancel", Reason: "order_id is required"}
	}
	return r.backend.ExecuteTool(ctx, "order.cancel", input, cc)
}

// ── Service & venues ────────────────────────────────────────

type callStaffInput struct {
	Reason string `json:"reason,omitempty"`
}

func (r *Registry) serviceCallStaff(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in callStaffInput
	if err := decodeStrict("service.call_staff", input, &in); err != nil {
		return nil, err
	}
	return r.backend.ExecuteTool(ctx, "service.call_staff", input, cc)
}

type venuesListNearbyInput struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km,omitempty"`
}

func (r *Registry) venuesListNearby(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in venuesListNearbyInput
	if err := decodeStrict("venues.list_nearby", input, &in); err != nil {
		return nil, err
	}
	if in.Lat < -90 || in.Lat > 90 || in.Lng < -180 || in.Lng > 180 {
		return nil, &ValidationError{Tool: "venues.list_nearby", Reason: "lat/lng out of range"}
	}
	return r.backend.ExecuteTool(ctx, "venues.list_nearby", input, cc)
}

type venuesGetInput struct {
	VenueID string `json:"venue_id"`
}

func (r *Registry) venuesGet(ctx context.Context, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	var in venuesGetInput
	if err := decodeStrict("venues.get", input, &in); err != nil {
		return nil, err
	}
	if in.VenueID == "" {
		return nil, &ValidationError{Tool: "venues.get", Reason: "venue_id is required"}
	}
	return r.backend.ExecuteTool(ctx, "venues.get", input, cc)
}

// ── Foundation ──────────────────────────────────────────────

func foundationPing(_ context.Context, _ json.RawMessage, _ models.ClientContext) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

func foundationWhoami(_ context.Context, _ json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	// ClientContext marshals without the auth token.
	return json.Marshal(cc)
}
