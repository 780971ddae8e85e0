package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	cartItemID    = "stress-cart-item"
	cartStock     = 20
	cartRequests  = 50
	saleItemID    = "stress-sale-item"
	saleStock     = 10
	saleCustomers = 25
)

func main() {
	ctx := context.Background()
	log := logrus.New()
	log.Level = logrus.WarnLevel

	dir, err := os.MkdirTemp("", "storefront-stress")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "stress.db"))
	if err != nil {
		log.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	store := storage.NewSQLiteAdapter(db)
	if _, err := store.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	kv := storage.NewMemoryStore(time.Minute)

	for _, p := range []domain.Product{
		{ID: cartItemID, Name: "Cart Item", Price: decimal.RequireFromString("2.50"), Stock: cartStock},
		{ID: saleItemID, Name: "Sale Item", Price: decimal.RequireFromString("99.00"), Stock: saleStock},
	} {
		if err := store.UpsertProduct(ctx, p); err != nil {
			log.Fatalf("failed to seed product: %v", err)
		}
	}

	passed := runCartStress(ctx, store, log)
	passed = runCheckoutStress(ctx, store, kv, log) && passed

	if !passed {
		os.Exit(1)
	}
}

// runCartStress hammers one session's cart and checks the local view never
// drifts from the store.
func runCartStress(ctx context.Context, store *storage.SQLAdapter, log logrus.FieldLogger) bool {
	user := newUser(ctx, store, log)
	cart := service.NewCartManager(store, log)
	cart.SetUser(ctx, user)

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < cartRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cart.AddToCart(ctx, cartItemID, 1); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== CART STRESS RESULTS ==========")
	fmt.Printf("Stock:            %d\n", cartStock)
	fmt.Printf("Total Requests:   %d\n", cartRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Local Total:      %d\n", cart.TotalItems())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if success != cartStock || fail != cartRequests-cartStock {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			cartStock, cartRequests-cartStock, success, fail)
		ok = false
	}

	fresh, err := store.GetCartItems(ctx, user.ID)
	if err != nil {
		log.Fatalf("failed to read cart: %v", err)
	}
	if reflect.DeepEqual(fresh, cart.Items()) && cart.TotalItems() == cartStock {
		fmt.Println("PASS: Local cart matches store")
	} else {
		fmt.Printf("FAIL: Local cart drifted: local %d items, store %v\n", cart.TotalItems(), fresh)
		ok = false
	}
	return ok
}

// runCheckoutStress has many customers race to buy a scarce product.
func runCheckoutStress(ctx context.Context, store *storage.SQLAdapter, kv *storage.MemoryStore, log logrus.FieldLogger) bool {
	checkout := service.NewCheckoutService(store, store, kv, kv, log)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < saleCustomers; i++ {
		user := newUser(ctx, store, log)
		session := service.NewSession(uuid.NewString(), store, log)
		session.Start(ctx, user)
		if err := session.Cart.AddToCart(ctx, saleItemID, 1); err != nil {
			log.Fatalf("failed to fill cart: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer session.Close(ctx)
			if _, err := checkout.Checkout(ctx, session, uuid.NewString()); err == nil {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)
	success := successCount.Load()

	inv, err := store.GetInventory(ctx, saleItemID)
	if err != nil {
		log.Fatalf("failed to read inventory: %v", err)
	}

	fmt.Println("======== CHECKOUT STRESS RESULTS ========")
	fmt.Printf("Initial Stock:    %d\n", saleStock)
	fmt.Printf("Customers:        %d\n", saleCustomers)
	fmt.Printf("Orders Placed:    %d\n", success)
	fmt.Printf("Final Stock:      %d\n", inv.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == saleStock && inv.Stock == 0 {
		fmt.Printf("PASS: Exactly %d orders succeeded, stock depleted to 0\n", saleStock)
		return true
	}
	fmt.Printf("FAIL: Expected %d orders and stock 0, got %d orders and stock %d\n", saleStock, success, inv.Stock)
	return false
}

func newUser(ctx context.Context, store *storage.SQLAdapter, log logrus.FieldLogger) *domain.User {
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@stress.test",
		DisplayName:  "stress",
		PasswordHash: "-",
		CreatedAt:    time.Now(),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	return &user
}
