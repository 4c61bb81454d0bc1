package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/core/rbac"
	"github.com/rl1809/bookshelf/internal/core/service"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	books     *service.BookService
	users     *service.UserService
	auth      *service.AuthService
	inventory *service.InventoryService
	roles     *rbac.Registry
	logger    *slog.Logger
}

func NewHTTPHandler(
	books *service.BookService,
	users *service.UserService,
	auth *service.AuthService,
	inventory *service.InventoryService,
	roles *rbac.Registry,
	logger *slog.Logger,
) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{
		books:     books,
		users:     users,
		auth:      auth,
		inventory: inventory,
		roles:     roles,
		logger:    logger.With("component", "http"),
	}
}

// Routes builds the full HTTP surface. allowedOrigins configures CORS.
func (h *HTTPHandler) Routes(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	authed := Authenticate(h.auth, h.logger)
	guarded := func(perm string, fn http.HandlerFunc) http.Handler {
		return authed(RequirePermission(h.roles, perm)(fn))
	}

	mux.HandleFunc("GET /{$}", h.Welcome)
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)

	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("GET /api/books/{isbn}", h.GetBook)
	mux.Handle("POST /api/books", guarded(domain.PermAddBook, h.AddBook))
	mux.Handle("PUT /api/books/{isbn}", guarded(domain.PermUpdateBook, h.UpdateBook))
	mux.Handle("DELETE /api/books/{isbn}", guarded(domain.PermDeleteBook, h.DeleteBook))

	mux.Handle("GET /api/users", guarded(domain.PermViewUsers, h.ListUsers))
	mux.Handle("POST /api/users", guarded(domain.PermAddUser, h.CreateUser))
	mux.Handle("PATCH /api/users/change-password", guarded(domain.PermChangePassword, h.ChangePassword))
	mux.Handle("POST /api/users/validate-password", guarded(domain.PermChangePassword, h.ValidatePassword))
	mux.Handle("GET /api/users/{userId}", authed(http.HandlerFunc(h.GetUser)))
	mux.Handle("DELETE /api/users/{userId}", guarded(domain.PermDeleteUser, h.DeleteUser))

	mux.Handle("POST /api/users/{userId}/borrow/{bookId}", authed(http.HandlerFunc(h.Borrow)))
	mux.Handle("POST /api/users/{userId}/return/{bookId}", authed(http.HandlerFunc(h.Return)))
	mux.Handle("GET /api/users/{userId}/borrowed-books", authed(http.HandlerFunc(h.BorrowedBooks)))

	return Chain(mux,
		Recover(h.logger),
		RequestLogger(h.logger),
		CORS(allowedOrigins),
	)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateBookRequest struct {
	Name     *string  `json:"name"`
	Category *string  `json:"category"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// userView is the client-facing user record. It never carries the hash.
type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserView(u domain.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type loginResponse struct {
	Token         string        `json:"token"`
	ID            string        `json:"id"`
	Username      string        `json:"username"`
	Role          string        `json:"role"`
	BorrowedBooks []domain.Book `json:"borrowedBooks"`
}

func (h *HTTPHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "Welcome to the Library Management API!")
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserView(*user))
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	borrowed := result.BorrowedBooks
	if borrowed == nil {
		borrowed = []domain.Book{}
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:         result.Token,
		ID:            result.User.ID,
		Username:      result.User.Username,
		Role:          result.User.Role,
		BorrowedBooks: borrowed,
	})
}

func (h *HTTPHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if books == nil {
		books = []domain.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *HTTPHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.books.Get(r.Context(), r.PathValue("isbn"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *HTTPHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	var req domain.Book
	if !h.decode(w, r, &req) {
		return
	}

	book, err := h.books.Add(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *HTTPHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var req updateBookRequest
	if !h.decode(w, r, &req) {
		return
	}

	update := domain.BookUpdate{Name: req.Name, Category: req.Category, Price: req.Price}
	if err := h.books.Update(r.Context(), r.PathValue("isbn"), update, req.Quantity); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book updated")
}

func (h *HTTPHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.books.Delete(r.Context(), r.PathValue("isbn")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book deleted")
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.users.Create(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserView(*user))
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if !h.authorizeSelf(w, r, userID, domain.PermViewUsers) {
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(*user))
}

func (h *HTTPHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), r.PathValue("userId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted")
}

func (h *HTTPHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, _ := domain.IdentityFromContext(r.Context())
	if err := h.users.ChangePassword(r.Context(), id.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

func (h *HTTPHandler) ValidatePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, _ := domain.IdentityFromContext(r.Context())
	ok, err := h.users.ValidateCurrentPassword(r.Context(), id.ID, req.CurrentPassword)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeError(w, r, h.logger, domain.ErrCurrentPasswordMismatch)
		return
	}
	writeMessage(w, http.StatusOK, "Current password is correct")
}

func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	userID, isbn := r.PathValue("userId"), r.PathValue("bookId")
	if !h.authorizeSelf(w, r, userID, domain.PermManageLoans) {
		return
	}

	requestID := r.Header.Get("Idempotency-Key")
	if err := h.inventory.Borrow(r.Context(), userID, isbn, requestID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book borrowed successfully")
}

func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	userID, isbn := r.PathValue("userId"), r.PathValue("bookId")
	if !h.authorizeSelf(w, r, userID, domain.PermManageLoans) {
		return
	}

	if err := h.inventory.Return(r.Context(), userID, isbn); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book returned successfully")
}

func (h *HTTPHandler) BorrowedBooks(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if !h.authorizeSelf(w, r, userID, domain.PermManageLoans) {
		return
	}

	books, err := h.inventory.BorrowedBooks(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if books == nil {
		books = []domain.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

// authorizeSelf lets callers act on their own account and otherwise
// requires perm.
func (h *HTTPHandler) authorizeSelf(w http.ResponseWriter, r *http.Request, userID, perm string) bool {
	var caller *domain.Identity
	if id, ok := domain.IdentityFromContext(r.Context()); ok {
		caller = &id
	}
	if err := h.roles.AuthorizeSelf(caller, userID, perm); err != nil {
		writeError(w, r, h.logger, err)
		return false
	}
	return true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return false
	}
	return true
}
