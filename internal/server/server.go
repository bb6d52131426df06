package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"roastline/internal/engine"
	"roastline/internal/repo"
)

// Config for the HTTP API handler. Context bounds the lifetime of the
// webhook dispatcher; nil means it runs until the process exits.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Context  context.Context
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"insufficient_stock"`
	Message string         `json:"message" example:"not enough roasted coffee"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Roastline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Roastline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerCatalog(group, cfg.Engine)
	registerOrders(group, cfg.Engine)
	registerBatches(group, cfg.Engine)
	registerInventory(group, cfg.Engine)
	registerDemand(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	dispatchCtx := cfg.Context
	if dispatchCtx == nil {
		dispatchCtx = context.Background()
	}
	startWebhookDispatcher(dispatchCtx, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	var se engine.InvalidStateError
	if errors.As(err, &se) {
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), nil)
	}
	var ie engine.InsufficientStockError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusUnprocessableEntity, "insufficient_stock", err.Error(), map[string]any{"shortfalls": ie.Shortfalls})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "invalid_state"
	case http.StatusUnprocessableEntity:
		return "insufficient_stock"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Roastline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-coffees",
		Method:      http.MethodGet,
		Path:        "/catalog/coffees",
		Summary:     "List coffees",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CoffeeResponse `json:"body"`
	}, error) {
		items, err := e.Catalog.ListCoffees(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]CoffeeResponse, 0, len(items))
		for _, c := range items {
			res = append(res, CoffeeResponse(c))
		}
		return &struct {
			Body []CoffeeResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-shops",
		Method:      http.MethodGet,
		Path:        "/catalog/shops",
		Summary:     "List shops",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ShopResponse `json:"body"`
	}, error) {
		items, err := e.Catalog.ListShops(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ShopResponse, 0, len(items))
		for _, s := range items {
			res = append(res, ShopResponse(s))
		}
		return &struct {
			Body []ShopResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerOrders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        http.MethodPost,
		Path:          "/orders",
		Summary:       "Create order",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateOrderRequest `json:"body"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		actorID := actorIDOrDefault(ctx)
		opts := engine.OrderCreateOptions{
			Channel:      input.Body.Channel,
			ShopID:       stringOrEmpty(input.Body.ShopID),
			CustomerName: stringOrEmpty(input.Body.CustomerName),
			DeliveryDate: stringOrEmpty(input.Body.DeliveryDate),
			Status:       stringOrEmpty(input.Body.Status),
			Note:         stringOrEmpty(input.Body.Note),
			ActorID:      actorID,
		}
		for _, item := range input.Body.Items {
			opts.Items = append(opts.Items, engine.OrderItemInput{CoffeeID: item.CoffeeID, Kg: item.Kg})
		}
		o, err := e.CreateOrder(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List orders",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []OrderResponse `json:"body"`
	}, error) {
		items, err := e.ListOrders(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []OrderResponse `json:"body"`
		}{Body: mapOrders(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}",
		Summary:     "Get order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		o, err := e.GetOrder(ctx, input.OrderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-order",
		Method:      http.MethodPost,
		Path:        "/orders/{order_id}/advance",
		Summary:     "Advance order to the next status",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		o, err := e.AdvanceOrder(ctx, input.OrderID, actorIDOrDefault(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-order",
		Method:      http.MethodPost,
		Path:        "/orders/{order_id}/approve",
		Summary:     "Release order for production",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		o, err := e.ApproveOrder(ctx, input.OrderID, actorIDOrDefault(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deliver-order",
		Method:      http.MethodPost,
		Path:        "/orders/{order_id}/deliver",
		Summary:     "Deliver order, consuming roasted stock",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		o, err := e.DeliverOrder(ctx, input.OrderID, actorIDOrDefault(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-order",
		Method:      http.MethodDelete,
		Path:        "/orders/{order_id}",
		Summary:     "Delete order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct{}, error) {
		removed, err := e.DeleteOrder(ctx, input.OrderID, actorIDOrDefault(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if !removed {
			return nil, newAPIError(http.StatusNotFound, "not_found", "order not found", nil)
		}
		return &struct{}{}, nil
	})
}

func registerBatches(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-batch",
		Method:        http.MethodPost,
		Path:          "/batches",
		Summary:       "Plan roasting batch",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateBatchRequest `json:"body"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		b, err := e.CreateBatch(ctx, engine.BatchCreateOptions{
			CoffeeID: input.Body.CoffeeID,
			Kg:       input.Body.Kg,
			Note:     stringOrEmpty(input.Body.Note),
			ActorID:  actorIDOrDefault(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: BatchResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-batches",
		Method:      http.MethodGet,
		Path:        "/batches",
		Summary:     "List batches",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BatchResponse `json:"body"`
	}, error) {
		items, err := e.ListBatches(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]BatchResponse, 0, len(items))
		for _, b := range items {
			res = append(res, BatchResponse(b))
		}
		return &struct {
			Body []BatchResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-batch",
		Method:      http.MethodPost,
		Path:        "/batches/{batch_id}/advance",
		Summary:     "Advance batch to the next status",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		BatchID string `path:"batch_id"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		b, err := e.AdvanceBatch(ctx, input.BatchID, actorIDOrDefault(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: BatchResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-batch",
		Method:      http.MethodDelete,
		Path:        "/batches/{batch_id}",
		Summary:     "Delete batch",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BatchID string `path:"batch_id"`
	}) (*struct{}, error) {
		removed, err := e.DeleteBatch(ctx, input.BatchID, actorIDOrDefault(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if !removed {
			return nil, newAPIError(http.StatusNotFound, "not_found", "batch not found", nil)
		}
		return &struct{}{}, nil
	})
}

func registerInventory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-inventory",
		Method:      http.MethodGet,
		Path:        "/inventory",
		Summary:     "Current stock snapshot",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body InventoryResponse `json:"body"`
	}, error) {
		state, err := e.Inventory(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InventoryResponse `json:"body"`
		}{Body: inventoryResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-inventory",
		Method:      http.MethodPost,
		Path:        "/inventory/changes",
		Summary:     "Adjust stock by a delta",
		Errors: []int{
			http.StatusBadRequest,
		},
	}, func(ctx context.Context, input *struct {
		Body InventoryChangeRequest `json:"body"`
	}) (*struct {
		Body InventoryResponse `json:"body"`
	}, error) {
		err := e.ApplyInventoryChange(ctx, input.Body.Kind, input.Body.CoffeeID, input.Body.DeltaKg, stringOrEmpty(input.Body.Note), actorIDOrDefault(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		state, err := e.Inventory(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InventoryResponse `json:"body"`
		}{Body: inventoryResponse(state)}, nil
	})
}

func registerDemand(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "roast-demand",
		Method:      http.MethodGet,
		Path:        "/demand",
		Summary:     "Open roast demand per coffee",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DemandResponse `json:"body"`
	}, error) {
		items, err := e.RoastDemand(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]DemandResponse, 0, len(items))
		for _, d := range items {
			res = append(res, DemandResponse(d))
		}
		return &struct {
			Body []DemandResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "activity-log",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Recent activity, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"250" minimum:"1" maximum:"250"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		entries, err := e.ActivityLog(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ActivityResponse, 0, len(entries))
		for _, entry := range entries {
			res = append(res, ActivityResponse(entry))
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: res}, nil
	})
}
