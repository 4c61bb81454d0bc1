package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/bookshelf/internal/adapter/handler"
	"github.com/rl1809/bookshelf/internal/core/domain"
)

type options struct {
	baseURL   string
	grpcAddr  string
	mode      string
	adminUser string
	adminPass string
	stock     int
	requests  int
}

type session struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *client) login(ctx context.Context, username, password string) (session, error) {
	var s session
	status, err := c.call(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &s)
	if err != nil {
		return s, err
	}
	if status != http.StatusOK {
		return s, fmt.Errorf("login %s: status %d", username, status)
	}
	return s, nil
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "HTTP base URL of the server")
	flag.StringVar(&opts.grpcAddr, "grpc", "localhost:50051", "gRPC address, used with -mode grpc")
	flag.StringVar(&opts.mode, "mode", "http", "transport for borrow calls: http or grpc")
	flag.StringVar(&opts.adminUser, "admin-user", "admin", "administrator username")
	flag.StringVar(&opts.adminPass, "admin-pass", os.Getenv("BOOKSHELF_ADMIN_PASSWORD"), "administrator password")
	flag.IntVar(&opts.stock, "stock", 20, "copies of the test book")
	flag.IntVar(&opts.requests, "requests", 50, "concurrent borrowers")
	flag.Parse()

	if err := run(context.Background(), opts); err != nil {
		log.Fatalf("stress test: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	c := &client{baseURL: opts.baseURL, http: &http.Client{Timeout: 30 * time.Second}}

	admin, err := c.login(ctx, opts.adminUser, opts.adminPass)
	if err != nil {
		return err
	}

	// Fresh book per run
	isbn := "stress-" + uuid.NewString()[:8]
	status, err := c.call(ctx, http.MethodPost, "/api/books", admin.Token, domain.Book{
		ISBN:     isbn,
		Name:     "Stress Test Edition",
		Category: "test",
		Quantity: opts.stock,
	}, nil)
	if err != nil || status != http.StatusCreated {
		return fmt.Errorf("create book: status %d: %v", status, err)
	}

	// One borrower account per request
	sessions := make([]session, opts.requests)
	for i := range sessions {
		username := fmt.Sprintf("stress-%s", uuid.NewString()[:12])
		status, err := c.call(ctx, http.MethodPost, "/api/users", admin.Token, map[string]string{
			"username": username,
			"password": "stress",
			"role":     domain.RoleUser,
		}, nil)
		if err != nil || status != http.StatusCreated {
			return fmt.Errorf("create user: status %d: %v", status, err)
		}
		if sessions[i], err = c.login(ctx, username, "stress"); err != nil {
			return err
		}
	}

	borrow, closeFn, err := borrowFunc(ctx, c, opts)
	if err != nil {
		return err
	}
	defer closeFn()

	var successCount, failCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, s := range sessions {
		wg.Add(1)
		go func(s session) {
			defer wg.Done()
			if borrow(s, isbn) {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(s)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success, fail := successCount.Load(), failCount.Load()
	expectedSuccess := min(opts.stock, opts.requests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Transport:        %s\n", opts.mode)
	fmt.Printf("Initial Stock:    %d\n", opts.stock)
	fmt.Printf("Total Requests:   %d\n", opts.requests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	pass := color.New(color.FgGreen, color.Bold)
	failc := color.New(color.FgRed, color.Bold)

	ok := true
	if int(success) == expectedSuccess && int(fail) == opts.requests-expectedSuccess {
		pass.Printf("PASS: exactly %d borrows succeeded, %d failed\n", success, fail)
	} else {
		failc.Printf("FAIL: expected %d success/%d fail, got %d/%d\n",
			expectedSuccess, opts.requests-expectedSuccess, success, fail)
		ok = false
	}

	var book domain.Book
	if _, err := c.call(ctx, http.MethodGet, "/api/books/"+isbn, "", nil, &book); err != nil {
		return err
	}
	fmt.Printf("Final Stock:      %d\n", book.Quantity)
	if book.Quantity == opts.stock-expectedSuccess {
		pass.Printf("PASS: stock is %d\n", book.Quantity)
	} else {
		failc.Printf("FAIL: expected stock %d, got %d\n", opts.stock-expectedSuccess, book.Quantity)
		ok = false
	}

	if !ok {
		return fmt.Errorf("inventory invariant violated")
	}
	return nil
}

// borrowFunc returns the borrow call for the chosen transport.
func borrowFunc(ctx context.Context, c *client, opts options) (func(session, string) bool, func(), error) {
	switch opts.mode {
	case "http":
		return func(s session, isbn string) bool {
			status, err := c.call(ctx, http.MethodPost, fmt.Sprintf("/api/users/%s/borrow/%s", s.ID, isbn), s.Token, nil, nil)
			return err == nil && status == http.StatusOK
		}, func() {}, nil

	case "grpc":
		conn, err := grpc.NewClient(opts.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("dial gRPC: %w", err)
		}
		inventory := handler.NewInventoryClient(conn)
		return func(s session, isbn string) bool {
			_, err := inventory.Borrow(handler.WithBearerToken(ctx, s.Token), &handler.LoanRequest{
				UserID:    s.ID,
				ISBN:      isbn,
				RequestID: uuid.NewString(),
			})
			return err == nil
		}, func() { conn.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown mode %q", opts.mode)
	}
}
