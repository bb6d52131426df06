package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"roastline/internal/app"
	"roastline/internal/config"
	"roastline/internal/db"
	"roastline/internal/domain"
	"roastline/internal/engine"
	"roastline/internal/repo"
	"roastline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "rl",
	Short: "Roastline CLI",
	Long: `Roastline runs the operational side of a coffee roastery.
- Orders: shop (FILIALE) and wholesale (B2B) orders flow ENTWURF -> EINGEGANGEN -> FREIGEGEBEN -> IN_PRODUKTION -> VERPACKT -> AUSGELIEFERT.
- Batches: roasting batches flow GEPLANT -> GEROESTET -> ABGEKUEHLT -> VERPACKT -> BEREIT -> AUSGELIEFERT; roasting moves green stock to roasted.
- Inventory: green and roasted kg per coffee, floored at zero.
- Demand: open roast demand aggregated over released orders.
- Activity: append-only log of everything that happened, view with 'rl log tail'.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ROASTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(inventoryCmd())
	rootCmd.AddCommand(demandCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default roastline.yml and initialize the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			conn, err := app.Open(cmd.Context(), workspace, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Printf("Initialized workspace: %s and %s\n", path, db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrIndent(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate roastline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = c.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func orderCmd() *cobra.Command {
	order := &cobra.Command{
		Use:   "order",
		Short: "Manage orders",
	}
	order.AddCommand(orderCreateCmd())
	order.AddCommand(orderListCmd())
	order.AddCommand(orderGetCmd())
	order.AddCommand(orderAdvanceCmd())
	order.AddCommand(orderApproveCmd())
	order.AddCommand(orderDeliverCmd())
	order.AddCommand(orderDeleteCmd())
	return order
}

func orderCreateCmd() *cobra.Command {
	var channel, shop, customer, deliveryDate, status, note string
	var items []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseItems(items)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{
					Channel:      channel,
					ShopID:       shop,
					CustomerName: customer,
					DeliveryDate: deliveryDate,
					Status:       status,
					Note:         note,
					Items:        parsed,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(o)
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "FILIALE", "order channel (FILIALE or B2B)")
	cmd.Flags().StringVar(&shop, "shop", "", "shop id (FILIALE)")
	cmd.Flags().StringVar(&customer, "customer", "", "customer name (B2B)")
	cmd.Flags().StringVar(&deliveryDate, "delivery-date", "", "delivery date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default EINGEGANGEN)")
	cmd.Flags().StringVar(&note, "note", "", "note")
	cmd.Flags().StringArrayVar(&items, "item", []string{}, "order item as coffee=kg (repeatable)")
	return cmd
}

func orderListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				orders, err := e.ListOrders(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(orders)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Channel", "Target", "Status", "Delivery", "Items"})
				for _, o := range orders {
					target := ""
					if o.ShopID != nil {
						target = *o.ShopID
					} else if o.CustomerName != nil {
						target = *o.CustomerName
					}
					tw.AppendRow(table.Row{o.ID, o.Channel, target, o.Status, o.DeliveryDate, formatItems(o.Items)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func orderGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(o)
			})
		},
	}
}

func orderAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <id>",
		Short: "Advance order to the next status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.AdvanceOrder(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(o)
			})
		},
	}
}

func orderApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Release order for production",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ApproveOrder(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(o)
			})
		},
	}
}

func orderDeliverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deliver <id>",
		Short: "Deliver order, consuming roasted stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.DeliverOrder(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(o)
			})
		},
	}
}

func orderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				removed, err := e.DeleteOrder(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("order %s not found", args[0])
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func batchCmd() *cobra.Command {
	batch := &cobra.Command{
		Use:   "batch",
		Short: "Manage roasting batches",
	}
	batch.AddCommand(batchCreateCmd())
	batch.AddCommand(batchListCmd())
	batch.AddCommand(batchAdvanceCmd())
	batch.AddCommand(batchDeleteCmd())
	return batch
}

func batchCreateCmd() *cobra.Command {
	var coffee, note string
	var kg float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Plan a roasting batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.CreateBatch(ctx, engine.BatchCreateOptions{
					CoffeeID: coffee,
					Kg:       kg,
					Note:     note,
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(b)
			})
		},
	}
	cmd.Flags().StringVar(&coffee, "coffee", "", "coffee id")
	cmd.Flags().Float64Var(&kg, "kg", 0, "green kg to roast")
	cmd.Flags().StringVar(&note, "note", "", "note")
	_ = cmd.MarkFlagRequired("coffee")
	_ = cmd.MarkFlagRequired("kg")
	return cmd
}

func batchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				batches, err := e.ListBatches(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(batches)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Coffee", "Kg", "Status", "Created"})
				for _, b := range batches {
					tw.AppendRow(table.Row{b.ID, b.CoffeeName, b.Kg, b.Status, b.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func batchAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <id>",
		Short: "Advance batch to the next status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.AdvanceBatch(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(b)
			})
		},
	}
}

func batchDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				removed, err := e.DeleteBatch(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("batch %s not found", args[0])
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func inventoryCmd() *cobra.Command {
	inv := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect and adjust stock",
	}
	inv.AddCommand(inventoryShowCmd())
	inv.AddCommand(inventoryChangeCmd())
	return inv
}

func inventoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Current stock per coffee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				state, err := e.Inventory(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(state)
				}
				ids := make([]string, 0, len(state.GreenKg))
				for id := range state.GreenKg {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Coffee", "Green kg", "Roasted kg"})
				for _, id := range ids {
					tw.AppendRow(table.Row{id, state.GreenKg[id], state.RoastedKg[id]})
				}
				tw.Render()
				if state.UpdatedAt != "" {
					fmt.Println("updated:", state.UpdatedAt)
				}
				return nil
			})
		},
	}
}

func inventoryChangeCmd() *cobra.Command {
	var kind, coffee, note string
	var delta float64
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Adjust stock by a delta (clamped at zero)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ApplyInventoryChange(ctx, kind, coffee, delta, note, viper.GetString("actor-id")); err != nil {
					return err
				}
				state, err := e.Inventory(ctx)
				if err != nil {
					return err
				}
				return printJSONOrIndent(state)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "stock kind (GREEN or ROASTED)")
	cmd.Flags().StringVar(&coffee, "coffee", "", "coffee id")
	cmd.Flags().Float64Var(&delta, "delta", 0, "kg delta, negative withdraws")
	cmd.Flags().StringVar(&note, "note", "", "note")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("coffee")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func demandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demand",
		Short: "Open roast demand per coffee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.RoastDemand(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Coffee", "Kg"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.CoffeeName, d.Kg})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func catalogCmd() *cobra.Command {
	cat := &cobra.Command{
		Use:   "catalog",
		Short: "Reference data",
	}
	cat.AddCommand(&cobra.Command{
		Use:   "coffees",
		Short: "List coffees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Catalog.ListCoffees(ctx)
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	})
	cat.AddCommand(&cobra.Command{
		Use:   "shops",
		Short: "List shops",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Catalog.ListShops(ctx)
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	})
	return cat
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
	}
	logRoot.AddCommand(logTailCmd())
	return logRoot
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.ActivityLog(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "At", "Action", "Meta"})
				for _, entry := range entries {
					meta, _ := json.Marshal(entry.Meta)
					tw.AppendRow(table.Row{entry.ID, entry.At, entry.Action, string(meta)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func apikeyCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	root.AddCommand(apikeyCreateCmd())
	root.AddCommand(apikeyListCmd())
	root.AddCommand(apikeyDeleteCmd())
	return root
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				raw := uuid.New().String() + uuid.New().String()
				key := domain.APIKey{
					ID:      uuid.New().String(),
					ActorID: viper.GetString("actor-id"),
					Name:    name,
					KeyHash: repo.HashAPIKey(raw),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "key": raw})
				}
				fmt.Printf("API key %s created. Store it now, it is not shown again:\n%s\n", key.ID, raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				removed, err := e.Repo.DeleteAPIKey(ctx, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("api key %s not found", args[0])
				}
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			conn, err := app.Open(cmd.Context(), workspace, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := engine.New(conn, cfg)
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			authCfg := server.AuthConfig{
				JWTSecret:              cfg.Server.Auth.JWTSecret,
				AllowLegacyActorHeader: cfg.Server.Auth.AllowLegacyActorHeader,
			}
			if env := os.Getenv("ROASTLINE_JWT_SECRET"); env != "" {
				authCfg.JWTSecret = env
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Context: cmd.Context()})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Roastline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	conn, err := app.Open(ctx, workspace, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func parseItems(specs []string) ([]engine.OrderItemInput, error) {
	var items []engine.OrderItemInput
	for _, spec := range specs {
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid item %q, expected coffee=kg", spec)
		}
		kg, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid kg in item %q: %w", spec, err)
		}
		items = append(items, engine.OrderItemInput{CoffeeID: strings.TrimSpace(parts[0]), Kg: kg})
	}
	return items, nil
}

func formatItems(items []domain.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s %gkg", item.CoffeeID, item.Kg))
	}
	return strings.Join(parts, ", ")
}

func printJSONOrIndent(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
